// Package controller locates and connects to the current primary
// management controller, resolving among N configured addresses by
// quorum vote, and runs the startup registration handshake against it.
//
// Grounded on original_source/lib/rpc_utils.py's get_server_connect and
// register_node.py.
package controller

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/rpcwire"
)

const electionCacheTTL = 60 * time.Second

// FatalErr marks a misconfiguration the process should not retry past:
// an empty or mismatched cluster host list reported by a controller.
type FatalErr struct{ msg string }

func (e *FatalErr) Error() string { return e.msg }

func fatalf(format string, args ...any) error {
	return &FatalErr{msg: fmt.Sprintf(format, args...)}
}

// Client resolves and dials the current primary controller, caching
// the elected address for electionCacheTTL so a multi-controller
// cluster isn't re-polled on every call.
type Client struct {
	cfg *config.Store

	mu        sync.Mutex
	addr      string
	electedAt time.Time
}

func New(cfg *config.Store) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) hostPorts() ([]string, error) {
	raw := strings.TrimSpace(c.cfg.Get("server_address", ""))
	if raw == "" {
		return nil, fatalf("can not find server_address config in clup-agent.conf")
	}
	parts := strings.Split(raw, ",")
	hostPorts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		hostPorts = append(hostPorts, p)
	}
	if len(hostPorts) == 0 {
		return nil, fatalf("can not find server_address config in clup-agent.conf")
	}
	return hostPorts, nil
}

// Connect opens an authenticated RPC connection to the current primary
// controller, electing one first if more than one is configured.
func (c *Client) Connect() (*rpcwire.Client, error) {
	hostPorts, err := c.hostPorts()
	if err != nil {
		return nil, err
	}

	secret := c.cfg.Get("internal_rpc_pass", "")
	if len(hostPorts) == 1 {
		client, err := rpcwire.Dial(hostPorts[0], secret, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", hostPorts[0], err)
		}
		return client, nil
	}

	addr, err := c.electedAddr(hostPorts, secret)
	if err != nil {
		return nil, err
	}
	client, err := rpcwire.Dial(addr, secret, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return client, nil
}

// nodeReport is one controller's answer to get_clup_node_info, or its
// absence if the controller couldn't be reached.
type nodeReport struct {
	reachable bool
	primary   string
	hostsList []string
}

func (c *Client) electedAddr(hostPorts []string, secret string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.addr != "" && time.Since(c.electedAt) < electionCacheTTL {
		return c.addr, nil
	}

	configuredHosts := make([]string, len(hostPorts))
	portByHost := make(map[string]string, len(hostPorts))
	reports := make(map[string]nodeReport, len(hostPorts))
	for i, hp := range hostPorts {
		host, port := splitHostPort(hp)
		configuredHosts[i] = host
		portByHost[host] = port
		reports[host] = c.queryNode(hp, secret)
	}

	winner, err := electPrimary(configuredHosts, reports)
	if err != nil {
		return "", err
	}

	newAddr := fmt.Sprintf("%s:%s", winner, portByHost[winner])
	if c.addr != "" && c.addr != newAddr {
		logging.Info(fmt.Sprintf("switching controller from %s to %s", c.addr, newAddr))
	}
	c.addr = newAddr
	c.electedAt = time.Now()
	return c.addr, nil
}

func (c *Client) queryNode(hostPort, secret string) nodeReport {
	client, err := rpcwire.Dial(hostPort, secret, 5*time.Second)
	if err != nil {
		logging.Info(fmt.Sprintf("can not connect to %s: %v", hostPort, err))
		return nodeReport{}
	}
	defer client.Close()

	var reply struct {
		Primary   string
		HostsList []string
	}
	errCode, errMsg, callErr := client.CallJSON("get_clup_node_info", nil, &reply)
	if callErr != nil || errCode != 0 {
		logging.Info(fmt.Sprintf("get_clup_node_info on %s failed: %v %s", hostPort, callErr, errMsg))
		return nodeReport{}
	}
	return nodeReport{reachable: true, primary: reply.Primary, hostsList: reply.HostsList}
}

// electPrimary applies the quorum rule to a set of per-host reports:
// any reachable host reporting an empty or mismatched cluster list is
// fatal; otherwise the host named primary by at least two reachable
// controllers wins.
func electPrimary(configuredHosts []string, reports map[string]nodeReport) (string, error) {
	votes := make(map[string]int, len(configuredHosts))
	for _, host := range configuredHosts {
		votes[host] = 0
	}

	for host, report := range reports {
		if !report.reachable {
			continue
		}
		if len(report.hostsList) == 0 {
			return "", fatalf("%s is not running in multi-controller mode, clup-agent exiting", host)
		}
		if symmetricDifference(configuredHosts, report.hostsList) {
			return "", fatalf("configured controller list %v does not match %s's reported list %v", configuredHosts, host, report.hostsList)
		}
		if report.primary == "" {
			continue
		}
		if _, known := votes[report.primary]; !known {
			return "", fatalf("%s reported primary %s, which is not in the configured list %v", host, report.primary, configuredHosts)
		}
		votes[report.primary]++
	}

	for _, host := range configuredHosts {
		if votes[host] >= 2 {
			return host, nil
		}
	}
	return "", fmt.Errorf("no controller elected primary by quorum")
}

func splitHostPort(hostPort string) (host, port string) {
	idx := strings.LastIndex(hostPort, ":")
	if idx < 0 {
		return hostPort, ""
	}
	return hostPort[:idx], hostPort[idx+1:]
}

// symmetricDifference reports whether the two host lists differ at
// all, ignoring order and duplicates.
func symmetricDifference(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return true
	}
	for h := range as {
		if !bs[h] {
			return true
		}
	}
	return false
}

func toSet(hosts []string) map[string]bool {
	out := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		out[h] = true
	}
	return out
}
