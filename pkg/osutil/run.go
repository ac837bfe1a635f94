// Package osutil implements the agent's thin filesystem, process and
// host-inspection primitives: the RPC methods spec.md groups as
// "Filesystem/process primitives", "Users/groups", "Shell execution",
// "Host info", "Networking" and "Mounts", none of which own any
// long-running task state of their own (that lives in ltc/chp/cft/wal).
//
// Grounded on original_source/lib/run_lib.py, utils.py and mount_lib.py.
package osutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/csudata/clup-agent/pkg/logging"
)

// RestartAgent implements restart_agent: asks the init system to
// restart the agent's own service unit, preferring systemctl and
// falling back to the SysV service command on hosts without it.
func RestartAgent() (int, string) {
	cmd := "service clup-agent restart"
	if _, err := os.Stat("/usr/bin/systemctl"); err == nil {
		cmd = "systemctl restart clup-agent"
	}
	errCode, errMsg, _ := RunCmdResult(cmd)
	return errCode, errMsg
}

// RunCmd runs cmd through the shell, discarding its output, and
// returns its exit code.
func RunCmd(cmd string) int {
	logging.Debug(fmt.Sprintf("run %s", cmd))
	c := exec.Command("sh", "-c", cmd)
	if err := c.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return -1
	}
	return 0
}

// RunCmdResult runs cmd through the shell to completion, capturing
// stdout and stderr, and returns (errCode, errMsg, stdoutText).
// errCode >= 0 is the process's own exit code; errCode -1 means the
// command never got a chance to run (exec failure) or was killed by a
// signal.
func RunCmdResult(cmd string) (int, string, string) {
	logging.Debug(fmt.Sprintf("run %s", cmd))
	c := exec.Command("sh", "-c", cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	if err == nil {
		return 0, "", stdout.String()
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), stderr.String(), stdout.String()
	}
	return -1, err.Error(), stdout.String()
}

// SendToExec runs cmd through the shell, writes data (plus a trailing
// newline) to its stdin, then collects stdout/stderr to completion.
func SendToExec(cmd, data string) (int, string, string) {
	logging.Debug(fmt.Sprintf("run start: %s, stdin data: %s", cmd, data))
	c := exec.Command("sh", "-c", cmd)
	stdin, err := c.StdinPipe()
	if err != nil {
		return -1, err.Error(), ""
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Start(); err != nil {
		return -1, err.Error(), ""
	}
	if _, err := stdin.Write([]byte(data + "\n")); err != nil {
		stdin.Close()
		return -1, err.Error(), ""
	}
	stdin.Close()

	err = c.Wait()
	if err == nil {
		return 0, stderr.String(), stdout.String()
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), stderr.String(), stdout.String()
	}
	return -1, err.Error(), stdout.String()
}
