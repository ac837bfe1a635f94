// Package rpcwire implements the agent's authenticated RPC transport: a
// framed (length-prefixed, msgpack-encoded) request/response protocol
// carried over a plain TCP connection, authenticated per-call by a shared
// secret. The wire format and transport are deliberately generic — CHP,
// CFT, LTC, WAL and config-file mutation register their own method
// handlers on top of it; this package knows nothing about any of them.
//
// Every RPC resolves to the (errCode, payload) convention used throughout
// the agent: errCode == 0 is success, errCode > 0 is a permanent/domain
// error callers must not retry, errCode < 0 is transient/infrastructure
// and callers may retry.
package rpcwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

// maxFrameSize bounds a single envelope to guard against a misbehaving
// peer claiming an absurd length prefix.
const maxFrameSize = 64 * 1024 * 1024

var msgpackHandle = &codec.MsgpackHandle{}

// Request is the client-to-server envelope.
type Request struct {
	RequestID uuid.UUID
	Method    string
	Args      []byte
	AuthToken string
}

// Response is the server-to-client envelope.
type Response struct {
	RequestID uuid.UUID
	ErrCode   int
	Payload   []byte
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), msgpackHandle)
	return dec.Decode(v)
}

// writeFrame writes a [4-byte big-endian length][msgpack body] frame.
func writeFrame(w io.Writer, v any) error {
	body, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and decodes it into v.
func readFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	return decode(body, v)
}

// EncodeArgs msgpack-encodes a handler's argument struct for inclusion in
// a Request.Args field. Provided so callers and handlers share one
// encoding path with the framing code above.
func EncodeArgs(v any) ([]byte, error) { return encode(v) }

// DecodeArgs decodes a Request.Args (or Response.Payload) blob into v.
func DecodeArgs(data []byte, v any) error { return decode(data, v) }
