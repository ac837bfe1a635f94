package rpcwire

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, secret string) (addr string, srv *Server) {
	t.Helper()
	srv = NewServer(secret, 4)
	srv.Register("echo", func(args []byte) (int, []byte) {
		var s string
		_ = DecodeArgs(args, &s)
		out, _ := EncodeArgs("echo:" + s)
		return 0, out
	})
	srv.Register("fail", func(args []byte) (int, []byte) {
		out, _ := EncodeArgs("nope")
		return 1, out
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.Serve(addr)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { srv.Close() })
	return addr, srv
}

func TestCallRoundTrip(t *testing.T) {
	addr, _ := startTestServer(t, "s3cret")
	c, err := Dial(addr, "s3cret", time.Second)
	require.NoError(t, err)
	defer c.Close()

	var reply string
	errCode, errMsg, err := c.CallJSON("echo", "hi", &reply)
	require.NoError(t, err)
	require.Equal(t, 0, errCode)
	require.Empty(t, errMsg)
	assert.Equal(t, "echo:hi", reply)
}

func TestCallWrongSecretIsRejected(t *testing.T) {
	addr, _ := startTestServer(t, "s3cret")
	c, err := Dial(addr, "wrong", time.Second)
	require.NoError(t, err)
	defer c.Close()

	errCode, payload, err := c.Call("echo", nil)
	require.NoError(t, err)
	assert.Equal(t, -1, errCode)
	var msg string
	_ = DecodeArgs(payload, &msg)
	assert.Contains(t, msg, "authentication failed")
}

func TestCallUnknownMethod(t *testing.T) {
	addr, _ := startTestServer(t, "s3cret")
	c, err := Dial(addr, "s3cret", time.Second)
	require.NoError(t, err)
	defer c.Close()

	errCode, _, err := c.Call("does_not_exist", nil)
	require.NoError(t, err)
	assert.Equal(t, -1, errCode)
}

func TestCallDomainErrorPropagates(t *testing.T) {
	addr, _ := startTestServer(t, "s3cret")
	c, err := Dial(addr, "s3cret", time.Second)
	require.NoError(t, err)
	defer c.Close()

	var reply string
	errCode, errMsg, err := c.CallJSON("fail", nil, &reply)
	require.NoError(t, err)
	assert.Equal(t, 1, errCode)
	assert.Equal(t, "nope", errMsg)
}
