package controller

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/rpcwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElectPrimaryByQuorum(t *testing.T) {
	full := []string{"a", "b", "c"}
	reports := map[string]nodeReport{
		"a": {reachable: true, primary: "a", hostsList: full},
		"b": {reachable: true, primary: "a", hostsList: full},
		"c": {},
	}
	winner, err := electPrimary(full, reports)
	require.NoError(t, err)
	assert.Equal(t, "a", winner)
}

func TestElectPrimaryDistinctVotesIsTransientError(t *testing.T) {
	full := []string{"a", "b", "c"}
	reports := map[string]nodeReport{
		"a": {reachable: true, primary: "a", hostsList: full},
		"b": {reachable: true, primary: "b", hostsList: full},
		"c": {reachable: true, primary: "c", hostsList: full},
	}
	_, err := electPrimary(full, reports)
	require.Error(t, err)
	var fatal *FatalErr
	assert.False(t, errors.As(err, &fatal))
}

func TestElectPrimaryEmptyHostsListIsFatal(t *testing.T) {
	full := []string{"a"}
	reports := map[string]nodeReport{
		"a": {reachable: true, primary: "", hostsList: nil},
	}
	_, err := electPrimary(full, reports)
	require.Error(t, err)
	var fatal *FatalErr
	assert.ErrorAs(t, err, &fatal)
}

func TestElectPrimaryMismatchedClusterListIsFatal(t *testing.T) {
	full := []string{"a", "b"}
	reports := map[string]nodeReport{
		"a": {reachable: true, primary: "a", hostsList: []string{"a", "b", "c"}},
	}
	_, err := electPrimary(full, reports)
	require.Error(t, err)
	var fatal *FatalErr
	assert.ErrorAs(t, err, &fatal)
}

func TestElectPrimaryUnreachableControllersAreIgnored(t *testing.T) {
	full := []string{"a", "b", "c"}
	reports := map[string]nodeReport{
		"a": {reachable: true, primary: "a", hostsList: full},
		"b": {reachable: true, primary: "a", hostsList: full},
		"c": {reachable: false},
	}
	winner, err := electPrimary(full, reports)
	require.NoError(t, err)
	assert.Equal(t, "a", winner)
}

func TestSymmetricDifference(t *testing.T) {
	assert.False(t, symmetricDifference([]string{"a", "b"}, []string{"b", "a"}))
	assert.True(t, symmetricDifference([]string{"a", "b"}, []string{"a", "c"}))
	assert.True(t, symmetricDifference([]string{"a", "b"}, []string{"a"}))
}

func TestHostPortsRequiresConfiguredAddress(t *testing.T) {
	cfg := config.NewAt(t.TempDir())
	c := New(cfg)
	_, err := c.hostPorts()
	require.Error(t, err)
	var fatal *FatalErr
	assert.ErrorAs(t, err, &fatal)
}

func startControllerStub(t *testing.T, secret string) string {
	t.Helper()
	srv := rpcwire.NewServer(secret, 4)
	srv.Register("get_clup_node_info", func(args []byte) (int, []byte) {
		out, _ := rpcwire.EncodeArgs(struct {
			Primary   string
			HostsList []string
		}{})
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

func TestConnectSingleAddressSkipsElection(t *testing.T) {
	secret := "s3cret"
	addr := startControllerStub(t, secret)

	cfg := config.NewAt(t.TempDir())
	cfg.Set("server_address", addr)
	cfg.Set("internal_rpc_pass", secret)

	c := New(cfg)
	rpc, err := c.Connect()
	require.NoError(t, err)
	defer rpc.Close()
}
