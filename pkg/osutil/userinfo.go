package osutil

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
)

// Passwd is the subset of a /etc/passwd entry the controller cares
// about.
type Passwd struct {
	Name  string
	UID   int
	GID   int
	Home  string
	Shell string
}

// PwdGetpwnam implements pwd_getpwnam.
func PwdGetpwnam(name string) (Passwd, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return Passwd{}, fmt.Errorf("lookup user %s: %w", name, err)
	}
	return passwdFromUser(u)
}

// PwdGetpwuid implements pwd_getpwuid.
func PwdGetpwuid(uid int) (Passwd, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return Passwd{}, fmt.Errorf("lookup uid %d: %w", uid, err)
	}
	return passwdFromUser(u)
}

func passwdFromUser(u *user.User) (Passwd, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Passwd{}, fmt.Errorf("bad uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Passwd{}, fmt.Errorf("bad gid %q: %w", u.Gid, err)
	}
	return Passwd{Name: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

// Group is one /etc/group entry.
type Group struct {
	Name    string
	GID     int
	Members []string
}

// GrpGetgrall implements grp_getgrall: the standard library has no
// enumerate-all-groups call (unlike os/user's single-lookup
// functions), so this reads /etc/group directly, matching what
// Python's grp.getgrall() does under the hood.
func GrpGetgrall() ([]Group, error) {
	f, err := os.Open("/etc/group")
	if err != nil {
		return nil, fmt.Errorf("open /etc/group: %w", err)
	}
	defer f.Close()

	var groups []Group
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cells := strings.Split(line, ":")
		if len(cells) < 4 {
			continue
		}
		gid, err := strconv.Atoi(cells[2])
		if err != nil {
			continue
		}
		var members []string
		if cells[3] != "" {
			members = strings.Split(cells[3], ",")
		}
		groups = append(groups, Group{Name: cells[0], GID: gid, Members: members})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read /etc/group: %w", err)
	}
	return groups, nil
}

// OsUserExists implements os_user_exists: returns name's uid, or 0 if
// no such user exists.
func OsUserExists(name string) int {
	u, err := user.Lookup(name)
	if err != nil {
		return 0
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0
	}
	return uid
}

// OsUidExists implements os_uid_exists.
func OsUidExists(uid int) bool {
	_, err := user.LookupId(strconv.Itoa(uid))
	return err == nil
}
