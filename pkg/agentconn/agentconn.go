// Package agentconn dials other clup-agent processes over the
// authenticated RPC transport (pkg/rpcwire), centralizing the
// host:port and shared-secret lookup every peer-to-peer caller (CHP,
// CFT, WAL delayed-copy) needs.
package agentconn

import (
	"fmt"
	"time"

	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/rpcwire"
)

const defaultDialTimeout = 10 * time.Second

// Dialer opens authenticated connections to peer agents, reading the
// listening port and shared secret from the process configuration on
// every call so a hot-reloaded secret takes effect on the next dial.
type Dialer struct {
	cfg     *config.Store
	timeout time.Duration
}

func New(cfg *config.Store) *Dialer {
	return &Dialer{cfg: cfg, timeout: defaultDialTimeout}
}

// MyIP returns this host's resolved management address, the value a
// caller hands a peer as its own callback address.
func (d *Dialer) MyIP() string {
	return d.cfg.Get("my_ip", "")
}

// Dial opens a connection to the agent listening on host at the
// configured agent_rpc_port, authenticated with internal_rpc_pass.
func (d *Dialer) Dial(host string) (*rpcwire.Client, error) {
	port := d.cfg.Get("agent_rpc_port", "3436")
	secret := d.cfg.Get("internal_rpc_pass", "")
	addr := fmt.Sprintf("%s:%s", host, port)
	c, err := rpcwire.Dial(addr, secret, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", addr, err)
	}
	return c, nil
}
