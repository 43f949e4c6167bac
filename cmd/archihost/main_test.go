package main

import (
	"encoding/binary"
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

const headerSize = 5 * 8

func nativeEndian() binary.ByteOrder {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// buildEmptyImage produces a minimal, valid input file with null
// params/instructions: reserve a free address with a throwaway mapping (so
// the anchor matches wherever the real Load ends up remapping it), then
// write the header bytes referencing that address.
func buildEmptyImage(t *testing.T) string {
	t.Helper()

	reserved, err := unix.Mmap(-1, 0, headerSize, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	require.NoError(t, err)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(reserved)))
	require.NoError(t, unix.Munmap(reserved))

	buf := make([]byte, headerSize)
	nativeEndian().PutUint64(buf[0:8], uint64(addr))
	nativeEndian().PutUint64(buf[8:16], uint64(addr)+uint64(len(buf)))
	copy(buf[16:24], "[archi]")
	// Params/Instructions (offsets 24, 32) left null.

	f, err := os.CreateTemp(t.TempDir(), "archi-host-*.img")
	require.NoError(t, err)
	_, err = f.Write(buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestRunEmptyProgramSucceeds(t *testing.T) {
	path := buildEmptyImage(t)
	assert.Equal(t, 0, run([]string{path}))
}

func TestRunMissingFile(t *testing.T) {
	assert.NotEqual(t, 0, run([]string{"/nonexistent/archi/input.img"}))
}

func TestRunRejectsNoPositionalArg(t *testing.T) {
	assert.NotEqual(t, 0, run([]string{"-v", "2"}))
}

func TestRunRejectsMalformedOverride(t *testing.T) {
	path := buildEmptyImage(t)
	assert.NotEqual(t, 0, run([]string{"-param", "noequalssign", path}))
}

func TestRunAcceptsOverrideAndStrict(t *testing.T) {
	path := buildEmptyImage(t)
	assert.Equal(t, 0, run([]string{"-v", "3", "-colour", "-strict", "-param", "greeting=hello", path}))
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 0, exitCode(0))
	assert.Equal(t, 1, exitCode(1))
	assert.Equal(t, 2, exitCode(2))
}
