package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walSegSize = 16 * 1024 * 1024

func makeHeader(lsn uint64, fileSize uint32) []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint64(buf[8:16], lsn)
	binary.LittleEndian.PutUint32(buf[32:36], fileSize)
	return buf
}

func TestIsValidWALAcceptsConsistentHeader(t *testing.T) {
	name := "000000010000000000000002"
	header := makeHeader(2*walSegSize, walSegSize)
	assert.True(t, IsValidWAL(name, header))
}

func TestIsValidWALRejectsMismatchedSegment(t *testing.T) {
	name := "000000010000000000000002"
	header := makeHeader(9*walSegSize, walSegSize)
	assert.False(t, IsValidWAL(name, header))
}

func TestIsValidWALRejectsNonPowerOfTwoSize(t *testing.T) {
	name := "000000010000000000000002"
	header := makeHeader(2*walSegSize, 3*1024*1024)
	assert.False(t, IsValidWAL(name, header))
}

func TestGetLastValidWALFileFindsLexicographicallyLastValidSegment(t *testing.T) {
	pgdata := t.TempDir()
	walDir := filepath.Join(pgdata, "pg_wal")
	require.NoError(t, os.Mkdir(walDir, 0o755))

	names := []string{
		"000000010000000000000001",
		"000000010000000000000002",
		"000000010000000000000003",
	}
	for i, name := range names {
		header := makeHeader(uint64(i+1)*walSegSize, walSegSize)
		require.NoError(t, os.WriteFile(filepath.Join(walDir, name), header, 0o600))
	}
	// corrupt the last one so it should be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(walDir, names[2]), []byte("short"), 0o600))

	last, err := GetLastValidWALFile(pgdata)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(walDir, names[1]), last)
}

func TestGetValidWALListAtOrAfterFiltersByNameSuffix(t *testing.T) {
	pgdata := t.TempDir()
	walDir := filepath.Join(pgdata, "pg_wal")
	require.NoError(t, os.Mkdir(walDir, 0o755))

	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("00000001%08X%08X", 0, i)
		header := makeHeader(uint64(i)*walSegSize, walSegSize)
		require.NoError(t, os.WriteFile(filepath.Join(walDir, name), header, 0o600))
	}

	list, err := GetValidWALListAtOrAfter(pgdata, "0000000000000002")
	require.NoError(t, err)
	require.Len(t, list, 2)
}
