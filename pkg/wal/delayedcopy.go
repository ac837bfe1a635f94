package wal

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/csudata/clup-agent/pkg/agentconn"
	"github.com/csudata/clup-agent/pkg/logging"
)

const readChunkSize = 4 * 1024 * 1024

// Stop runs "pg_ctl stop -m fast" as pgdata's owning user and waits up
// to waitSeconds for the postmaster to exit.
func Stop(pgdata string, waitSeconds int) error {
	if _, err := os.Stat(pgdata); err != nil {
		return fmt.Errorf("directory %s not exists", pgdata)
	}
	var st unix.Stat_t
	if err := unix.Stat(pgdata, &st); err != nil {
		return fmt.Errorf("stat %s: %w", pgdata, err)
	}
	owner, err := user.LookupId(strconv.FormatUint(uint64(st.Uid), 10))
	if err != nil {
		return fmt.Errorf("lookup uid %d: %w", st.Uid, err)
	}

	cmd := exec.Command("su", "-", owner.Username, "-c",
		fmt.Sprintf("pg_ctl stop -m fast -w -D %s > /dev/null", pgdata))
	_ = cmd.Run()

	if waitSeconds == 0 {
		return nil
	}
	for i := 0; i < waitSeconds; i++ {
		if !IsRunning(pgdata) {
			return nil
		}
		time.Sleep(time.Second)
	}
	if IsRunning(pgdata) {
		return fmt.Errorf("can not stop")
	}
	return nil
}

// RemoteReader fetches file chunks and WAL segment listings from a
// primary's agent over RPC (os_read_file and pg_get_valid_wal_list_le_pt).
type RemoteReader interface {
	ReadFile(remoteHost, path string, offset int64, length int) ([]byte, error)
	GetValidWALListAtOrAfter(host, pgdata, pt string) ([]string, error)
}

// CopyDelayedWALFromPrimary stops the local standby at stbPgdata, finds
// its last locally-valid WAL segment, asks priIP's agent for every WAL
// segment at or after that point, and copies each one byte-for-byte
// over RPC into the local WAL directory, preserving stbPgdata's
// ownership.
//
// Fixed relative to the source: the original returns after copying
// only the first segment in the list (its "return 0, ''" sits inside
// the copy loop). This copies every segment before returning.
func CopyDelayedWALFromPrimary(reader RemoteReader, priIP, priPgdata, stbPgdata string) error {
	if err := Stop(stbPgdata, 30); err != nil {
		return fmt.Errorf("database is running, can not stop: %w", err)
	}

	var fs unix.Stat_t
	if err := unix.Stat(stbPgdata, &fs); err != nil {
		return fmt.Errorf("stat %s: %w", stbPgdata, err)
	}

	walDir, err := WalDir(stbPgdata)
	if err != nil {
		return err
	}

	lastWalFile, err := GetLastValidWALFile(stbPgdata)
	if err != nil {
		return err
	}
	lastName := filepath.Base(lastWalFile)
	pt := lastName[len(lastName)-16:]

	priWalList, err := reader.GetValidWALListAtOrAfter(priIP, priPgdata, pt)
	if err != nil {
		return err
	}
	sort.Strings(priWalList)

	log := logging.WithComponent("wal")
	for _, priWalFile := range priWalList {
		priName := priWalFile[len(priWalFile)-walNameLen:]
		dstWalFile := filepath.Join(walDir, priName)
		log.Info().Str("from", priWalFile).Str("host", priIP).Str("to", dstWalFile).Msg("copying delayed wal segment")

		if err := copyOneSegment(reader, priIP, priWalFile, dstWalFile); err != nil {
			return err
		}
		if err := os.Chown(dstWalFile, int(fs.Uid), int(fs.Gid)); err != nil {
			return fmt.Errorf("chown %s: %w", dstWalFile, err)
		}
	}
	return nil
}

func copyOneSegment(reader RemoteReader, priIP, priWalFile, dstWalFile string) error {
	dst, err := os.OpenFile(dstWalFile, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", dstWalFile, err)
	}
	defer dst.Close()

	var offset int64
	for {
		data, err := reader.ReadFile(priIP, priWalFile, offset, readChunkSize)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			break
		}
		if _, err := dst.WriteAt(data, offset); err != nil {
			return fmt.Errorf("write %s: %w", dstWalFile, err)
		}
		offset += int64(len(data))
	}
	return nil
}

// AgentRemoteReader implements RemoteReader and the
// GetValidWALListAtOrAfter peer call over the agent-to-agent RPC
// transport.
type AgentRemoteReader struct {
	Dial *agentconn.Dialer
}

type readFileArgs struct {
	Path   string
	Offset int64
	Length int
}

func (r *AgentRemoteReader) ReadFile(host, path string, offset int64, length int) ([]byte, error) {
	c, err := r.Dial.Dial(host)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}
	defer c.Close()

	var data []byte
	errCode, errMsg, err := c.CallJSON("os_read_file", readFileArgs{Path: path, Offset: offset, Length: length}, &data)
	if err != nil {
		return nil, err
	}
	if errCode != 0 {
		return nil, fmt.Errorf("os_read_file: %s", errMsg)
	}
	return data, nil
}

type getValidWALListArgs struct {
	Pgdata string
	Pt     string
}

func (r *AgentRemoteReader) GetValidWALListAtOrAfter(host, pgdata, pt string) ([]string, error) {
	c, err := r.Dial.Dial(host)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}
	defer c.Close()

	var files []string
	errCode, errMsg, err := c.CallJSON("pg_get_valid_wal_list_le_pt", getValidWALListArgs{Pgdata: pgdata, Pt: pt}, &files)
	if err != nil {
		return nil, err
	}
	if errCode != 0 {
		return nil, fmt.Errorf("pg_get_valid_wal_list_le_pt: %s", errMsg)
	}
	return files, nil
}
