package rpcwire

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is an authenticated connection to one agent or controller RPC
// endpoint. A Client serializes calls on its single underlying
// connection; callers needing concurrent calls should open multiple
// Clients, matching the source agent's one-shot short-lived RPC
// connections for most calls.
type Client struct {
	secret string
	conn   net.Conn
	mu     sync.Mutex
}

// Dial opens a TCP connection to addr ("host:port") with the given
// connect timeout.
func Dial(addr string, secret string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{secret: secret, conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes method with the msgpack-encoded args, blocking for one
// request/response round trip. It returns the RPC-level (errCode,
// payload) pair; a non-nil error indicates a transport failure (the call
// never reached the peer, or its response couldn't be read), distinct
// from a domain or transient error reported via errCode.
func (c *Client) Call(method string, args []byte) (errCode int, payload []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	requestID := uuid.New()
	token, err := signRequest(c.secret, requestID)
	if err != nil {
		return 0, nil, fmt.Errorf("sign request: %w", err)
	}
	req := Request{
		RequestID: requestID,
		Method:    method,
		Args:      args,
		AuthToken: token,
	}
	if err := writeFrame(c.conn, &req); err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.RequestID != req.RequestID {
		return 0, nil, fmt.Errorf("response id mismatch: got %s want %s", resp.RequestID, req.RequestID)
	}
	return resp.ErrCode, resp.Payload, nil
}

// CallJSON is a convenience wrapper that encodes args and decodes the
// payload into reply via the shared msgpack codec.
func (c *Client) CallJSON(method string, args any, reply any) (errCode int, errMsg string, err error) {
	argBytes, err := EncodeArgs(args)
	if err != nil {
		return 0, "", fmt.Errorf("encode args: %w", err)
	}
	errCode, payload, err := c.Call(method, argBytes)
	if err != nil {
		return 0, "", err
	}
	if errCode != 0 {
		var msg string
		_ = DecodeArgs(payload, &msg)
		return errCode, msg, nil
	}
	if reply != nil && len(payload) > 0 {
		if err := DecodeArgs(payload, reply); err != nil {
			return 0, "", fmt.Errorf("decode reply: %w", err)
		}
	}
	return 0, "", nil
}
