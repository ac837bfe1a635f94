package logging

import (
	"fmt"

	"github.com/csudata/clup-agent/pkg/rpcwire"
)

// Handlers binds get_log_level/set_log_level onto the process-wide
// global level; it carries no state of its own.
type Handlers struct{}

func NewHandlers() *Handlers { return &Handlers{} }

// HandleGetLogLevel implements get_log_level.
func (h *Handlers) HandleGetLogLevel(args []byte) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(string(GetLevel()))
	return 0, out
}

// HandleSetLogLevel implements set_log_level.
func (h *Handlers) HandleSetLogLevel(args []byte) (int, []byte) {
	var level string
	if err := rpcwire.DecodeArgs(args, &level); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := SetLevel(Level(level)); err != nil {
		return errReply(1, err.Error())
	}
	return 0, nil
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
