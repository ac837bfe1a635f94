package osutil

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sys/unix"
)

// CopyFile copies src to dst, preserving src's permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// DeleteFile removes path, returning no error if it's already gone.
func DeleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ChangeFileName renames path to newName inside path's own directory.
// The change_file_name RPC handler does not use it: HandleChangeFileName
// calls Rename with the caller's full new path.
func ChangeFileName(path, newName string) error {
	dst := filepath.Join(filepath.Dir(path), newName)
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", path, dst, err)
	}
	return nil
}

// PathExists implements os_path_exists.
func PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// PathIsDir implements path_is_dir.
func PathIsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// DirIsEmpty implements dir_is_empty.
func DirIsEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("readdir %s: %w", path, err)
	}
	return len(entries) == 0, nil
}

// ReadFile implements os_read_file/file_read: read up to length bytes
// of path starting at offset, returning fewer (including zero at EOF).
func ReadFile(path string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return buf[:n], nil
}

// WriteFile implements os_write_file/file_write: write data at offset,
// creating the file (mode 0644) if it doesn't exist.
func WriteFile(path string, offset int64, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AppendFile implements append_file.
func AppendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// DirEntry is one entry reported by ListDir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// ListDir implements os_listdir.
func ListDir(dir string) ([]DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", dir, err)
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

// StatResult is the subset of stat(2) the controller asks for.
type StatResult struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Size  int64
	Mtime int64
}

// Stat implements os_stat.
func Stat(path string) (StatResult, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return StatResult{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return StatResult{
		Mode:  st.Mode & 0o7777,
		UID:   st.Uid,
		GID:   st.Gid,
		Size:  st.Size,
		Mtime: int64(st.Mtim.Sec),
	}, nil
}

// Chown implements os_chown.
func Chown(path string, uid, gid int) error {
	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}

// Chmod implements os_chmod.
func Chmod(path string, mode os.FileMode) error {
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// Makedirs implements os_makedirs: mkdir -p semantics.
func Makedirs(path string, mode os.FileMode) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("mkdirall %s: %w", path, err)
	}
	return nil
}

// Readlink implements os_readlink.
func Readlink(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", fmt.Errorf("readlink %s: %w", path, err)
	}
	return target, nil
}

// RealPath implements os_real_path.
func RealPath(path string) (string, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", fmt.Errorf("eval symlinks %s: %w", path, err)
	}
	return resolved, nil
}

// Rename implements os_rename.
func Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Kill implements os_kill(pid, signal).
func Kill(pid int, sig int) error {
	if err := unix.Kill(pid, syscall.Signal(sig)); err != nil {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}

// ChildPIDs implements get_child_pid_list: every process in /proc whose
// stat file names pid as its parent.
func ChildPIDs(pid int) ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("readdir /proc: %w", err)
	}
	var children []int
	for _, e := range entries {
		childPid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ppid, err := parentPID(childPid)
		if err != nil {
			continue
		}
		if ppid == pid {
			children = append(children, childPid)
		}
	}
	return children, nil
}

func parentPID(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// Fields after the executable name (which may itself contain
	// spaces/parens) start right after the last ')'.
	end := lastIndexByte(data, ')')
	if end < 0 || end+1 >= len(data) {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := splitFields(string(data[end+2:]))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	return strconv.Atoi(fields[1])
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}

// Mktemp implements mktemp: create and return the path of a new empty
// temp file under dir (os.TempDir() when dir is empty).
func Mktemp(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("mktemp: %w", err)
	}
	defer f.Close()
	return f.Name(), nil
}

// GetFileSize implements get_file_size.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// ReceiveFile implements receive_file: writes content to fileName,
// creating its parent directory if needed.
func ReceiveFile(fileName string, content []byte) error {
	dir := filepath.Dir(fileName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if err := os.WriteFile(fileName, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	return nil
}

// ExtractFile implements extract_file: unpacks a tar archive (gzipped
// or plain, auto-detected the way tar(1)'s -a does) into destDir,
// creating destDir first if it doesn't exist.
func ExtractFile(tarPath, destDir string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", tarPath, err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", destDir, err)
	}

	var tr *tar.Reader
	if gz, gzErr := gzip.NewReader(f); gzErr == nil {
		defer gz.Close()
		tr = tar.NewReader(gz)
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", tarPath, err)
		}
		tr = tar.NewReader(f)
	}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar %s: %w", tarPath, err)
		}
		target := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", filepath.Dir(target), err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("write %s: %w", target, err)
			}
			out.Close()
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("symlink %s: %w", target, err)
			}
		}
	}
}
