package controller

import (
	"net"
	"testing"
	"time"

	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/rpcwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRegisterStub(t *testing.T, secret string, errCode int, reply map[string]string) string {
	t.Helper()
	srv := rpcwire.NewServer(secret, 4)
	srv.Register("register_node", func(args []byte) (int, []byte) {
		var got registerNodeArgs
		_ = rpcwire.DecodeArgs(args, &got)
		if errCode != 0 {
			out, _ := rpcwire.EncodeArgs("rejected")
			return errCode, out
		}
		out, _ := rpcwire.EncodeArgs(reply)
		return 0, out
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.Serve(addr)
	}()
	<-ready
	time.Sleep(50 * time.Millisecond)
	t.Cleanup(func() { srv.Close() })
	return addr
}

func TestRegisterMergesPayloadOnSuccess(t *testing.T) {
	secret := "s3cret"
	addr := startRegisterStub(t, secret, 0, map[string]string{"cluster_id": "42"})

	cfg := config.NewAt(t.TempDir())
	cfg.Set("server_address", addr)
	cfg.Set("internal_rpc_pass", secret)
	cfg.Set("my_ip", "127.0.0.1")

	c := New(cfg)
	errCode, payload, err := c.register()
	require.NoError(t, err)
	assert.Equal(t, 0, errCode)
	assert.Equal(t, "42", payload["cluster_id"])
}

func TestRegisterPermanentRejectionReturnsPositiveCode(t *testing.T) {
	secret := "s3cret"
	addr := startRegisterStub(t, secret, 1, nil)

	cfg := config.NewAt(t.TempDir())
	cfg.Set("server_address", addr)
	cfg.Set("internal_rpc_pass", secret)

	c := New(cfg)
	errCode, _, err := c.register()
	assert.Equal(t, 1, errCode)
	assert.Error(t, err)
}
