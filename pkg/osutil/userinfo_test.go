package osutil

import (
	"os"
	"os/user"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentUser(t *testing.T) *user.User {
	t.Helper()
	u, err := user.Current()
	require.NoError(t, err)
	return u
}

func TestPwdGetpwnamCurrentUser(t *testing.T) {
	u := currentUser(t)
	pw, err := PwdGetpwnam(u.Username)
	require.NoError(t, err)
	assert.Equal(t, u.Username, pw.Name)
	assert.Equal(t, u.HomeDir, pw.Home)
}

func TestPwdGetpwuidCurrentUser(t *testing.T) {
	u := currentUser(t)
	uid, err := strconv.Atoi(u.Uid)
	require.NoError(t, err)

	pw, err := PwdGetpwuid(uid)
	require.NoError(t, err)
	assert.Equal(t, u.Username, pw.Name)
}

func TestOsUserExistsReturnsUidOrZero(t *testing.T) {
	u := currentUser(t)
	uid, err := strconv.Atoi(u.Uid)
	require.NoError(t, err)

	assert.Equal(t, uid, OsUserExists(u.Username))
	assert.Equal(t, 0, OsUserExists("no-such-clup-test-user"))
}

func TestOsUidExists(t *testing.T) {
	u := currentUser(t)
	uid, err := strconv.Atoi(u.Uid)
	require.NoError(t, err)

	assert.True(t, OsUidExists(uid))
	assert.False(t, OsUidExists(1<<30))
}

func TestGrpGetgrallReadsSystemGroups(t *testing.T) {
	if _, err := os.Stat("/etc/group"); err != nil {
		t.Skip("/etc/group not available")
	}
	groups, err := GrpGetgrall()
	require.NoError(t, err)
	assert.NotEmpty(t, groups)
	for _, g := range groups {
		assert.NotEmpty(t, g.Name)
	}
}
