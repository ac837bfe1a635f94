package controller

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/csudata/clup-agent/pkg/config"
	"github.com/csudata/clup-agent/pkg/logging"
	"github.com/csudata/clup-agent/pkg/osutil"
)

const registerRetryDelay = 30 * time.Second

type registerNodeArgs struct {
	Hostname string
	MyIP     string
	MemSize  int64
	CPUInfo  map[string]map[string]string
	OSType   string
}

// register performs one registration attempt: resolve the controller,
// call register_node, and report how the caller should proceed.
func (c *Client) register() (errCode int, payload map[string]string, err error) {
	rpc, err := c.Connect()
	if err != nil {
		return -1, nil, err
	}
	defer rpc.Close()

	hostname, err := os.Hostname()
	if err != nil {
		return -1, nil, fmt.Errorf("hostname: %w", err)
	}
	memSize, err := osutil.GetMemSize()
	if err != nil {
		return -1, nil, fmt.Errorf("mem size: %w", err)
	}
	cpuInfo, err := osutil.GetCPUInfo()
	if err != nil {
		return -1, nil, fmt.Errorf("cpu info: %w", err)
	}

	args := registerNodeArgs{
		Hostname: hostname,
		MyIP:     c.cfg.Get("my_ip", ""),
		MemSize:  memSize,
		CPUInfo:  cpuInfo,
		OSType:   osutil.GetOSType(),
	}

	var reply map[string]string
	code, msg, callErr := rpc.CallJSON("register_node", args, &reply)
	if callErr != nil {
		return -1, nil, callErr
	}
	if code != 0 {
		return code, nil, fmt.Errorf("%s", msg)
	}
	return 0, reply, nil
}

// RegistrationLoop implements C4: repeat registration until it
// succeeds, exiting the process on permanent rejection, until stop is
// closed. On success it merges the controller's response into cfg and
// returns.
func RegistrationLoop(cfg *config.Store, stop <-chan struct{}) {
	c := New(cfg)
	for {
		select {
		case <-stop:
			return
		default:
		}

		errCode, payload, err := c.register()
		var fatal *FatalErr
		switch {
		case errCode == 0 && err == nil:
			cfg.Merge(payload)
			logging.Info("registered with controller")
			return
		case errCode > 0, errors.As(err, &fatal):
			logging.Critical(fmt.Sprintf("registration permanently failed: %v", err))
			os.Exit(1)
		default:
			logging.Error(fmt.Sprintf("registration failed, retrying in 30s: %v", err))
			select {
			case <-stop:
				return
			case <-time.After(registerRetryDelay):
			}
		}
	}
}
