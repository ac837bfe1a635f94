package pgconfig

import (
	"fmt"

	"github.com/csudata/clup-agent/pkg/rpcwire"
)

// Handlers binds the RPC methods that edit or read configuration files
// on the local host. Unlike chp/cft/wal, these never dial a peer, so
// Handlers carries no dependencies.
type Handlers struct{}

func NewHandlers() *Handlers { return &Handlers{} }

type modifyType1Args struct {
	ConfigFile string
	Items      map[string]string
	DeliType   int
	Backup     bool
}

// HandleModifyConfigType1 implements modify_config_type1.
func (h *Handlers) HandleModifyConfigType1(args []byte) (int, []byte) {
	var a modifyType1Args
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	deli := DeliEquals
	if a.DeliType == int(DeliSpace) {
		deli = DeliSpace
	}
	if err := ModifyType1(a.ConfigFile, a.Items, deli, a.Backup); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

type modifyType2Args struct {
	ConfigFile  string
	Rules       []RegexRule
	Backup      bool
	AppendIfNot bool
}

// HandleModifyConfigType2 implements modify_config_type2.
func (h *Handlers) HandleModifyConfigType2(args []byte) (int, []byte) {
	var a modifyType2Args
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := ModifyType2(a.ConfigFile, a.Rules, a.Backup, a.AppendIfNot); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

type setTagArgs struct {
	FileName    string
	Tag         string
	SetContents string
}

// HandleConfigFileSetTagContent implements config_file_set_tag_content.
func (h *Handlers) HandleConfigFileSetTagContent(args []byte) (int, []byte) {
	var a setTagArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := SetTagContent(a.FileName, a.Tag, a.SetContents); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

// HandleConfigFileSetTagInHead implements config_file_set_tag_in_head.
func (h *Handlers) HandleConfigFileSetTagInHead(args []byte) (int, []byte) {
	var a setTagArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	if err := SetTagInHead(a.FileName, a.Tag, a.SetContents); err != nil {
		return errReply(-1, err.Error())
	}
	return 0, nil
}

type readItemsArgs struct {
	ConfigFile string
	ReadItems  []string
	ReadAll    bool
}

// HandleReadConfigItems implements read_config_file_items.
func (h *Handlers) HandleReadConfigItems(args []byte) (int, []byte) {
	var a readItemsArgs
	if err := rpcwire.DecodeArgs(args, &a); err != nil {
		return errReply(-1, fmt.Sprintf("decode args: %v", err))
	}
	items, err := ReadItems(a.ConfigFile, a.ReadItems, a.ReadAll)
	if err != nil {
		return errReply(-1, err.Error())
	}
	out, _ := rpcwire.EncodeArgs(items)
	return 0, out
}

func errReply(code int, msg string) (int, []byte) {
	out, _ := rpcwire.EncodeArgs(msg)
	return code, out
}
