package osutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCmdReturnsExitCode(t *testing.T) {
	assert.Equal(t, 0, RunCmd("true"))
	assert.Equal(t, 7, RunCmd("exit 7"))
}

func TestRunCmdResultCapturesOutput(t *testing.T) {
	errCode, errMsg, out := RunCmdResult("echo hello")
	assert.Equal(t, 0, errCode)
	assert.Empty(t, errMsg)
	assert.Equal(t, "hello\n", out)
}

func TestRunCmdResultCapturesNonZeroExit(t *testing.T) {
	errCode, errMsg, _ := RunCmdResult("echo oops 1>&2; exit 3")
	assert.Equal(t, 3, errCode)
	assert.Equal(t, "oops\n", errMsg)
}

func TestSendToExecWritesStdin(t *testing.T) {
	errCode, _, out := SendToExec("cat", "hello")
	assert.Equal(t, 0, errCode)
	assert.Equal(t, "hello\n", out)
}
