package cft

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Attr is the wire representation of an entry's inode metadata:
// permission bits (plus setuid/setgid/sticky), ownership, and
// access/modification times. applyAttr restores the permission bits and
// times; UID and GID travel on the wire but are not applied.
type Attr struct {
	Mode      uint32
	UID       uint32
	GID       uint32
	AtimeSec  int64
	AtimeNsec int64
	MtimeSec  int64
	MtimeNsec int64
}

func attrFromStat(st *unix.Stat_t) Attr {
	return Attr{
		Mode:      st.Mode & 07777,
		UID:       st.Uid,
		GID:       st.Gid,
		AtimeSec:  int64(st.Atim.Sec),
		AtimeNsec: int64(st.Atim.Nsec),
		MtimeSec:  int64(st.Mtim.Sec),
		MtimeNsec: int64(st.Mtim.Nsec),
	}
}

func (a Attr) atime() time.Time { return time.Unix(a.AtimeSec, a.AtimeNsec) }
func (a Attr) mtime() time.Time { return time.Unix(a.MtimeSec, a.MtimeNsec) }

// statPath lstats path, following the link itself rather than its
// target — used to classify the entry (dir/symlink/file).
func statPath(path string) (unix.Stat_t, error) {
	var st unix.Stat_t
	err := unix.Lstat(path, &st)
	return st, err
}

// applyAttr restores atime/mtime and, for non-symlinks, the permission
// bits. chmod is deliberately skipped for symlinks: it would follow the
// link and mutate the target's mode, which is never the caller's
// intent.
func applyAttr(path string, a Attr, isSymlink bool) error {
	if isSymlink {
		tv := []unix.Timeval{
			unix.NsecToTimeval(a.AtimeSec*1e9 + a.AtimeNsec),
			unix.NsecToTimeval(a.MtimeSec*1e9 + a.MtimeNsec),
		}
		return unix.Lutimes(path, tv)
	}
	if err := os.Chtimes(path, a.atime(), a.mtime()); err != nil {
		return err
	}
	return os.Chmod(path, os.FileMode(a.Mode&07777))
}
