// Package input implements the memory-mapped input file loader of spec.md
// §6: it maps a file, validates its header (a self-referential mapping
// anchor plus the "[archi]" magic), and exposes the file's params and
// instructions pointers tagged with the file's static-storage ref-count
// handle.
//
// Grounded on original_source/include/archi/res/file/header.typ.h and
// res_file/api/file.typ.h for the exact header layout.
package input

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ivanp7/archipelago-sub002/instruction"
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/refcount"
	"github.com/ivanp7/archipelago-sub002/status"
)

// Magic is the fixed 7-byte-plus-NUL magic every input file must start
// its header with.
const Magic = "[archi]"

// Header mirrors the on-disk layout of spec.md §6 (and, precisely,
// original_source's archi_exe_input_file_header_t): a self-referential
// mapping anchor {addr, end}, the magic, and the module-level
// params/instructions pointers. A real on-disk image carries this as packed
// bytes with internal pointers already fixed up for its original mapping
// address; Header is the parsed, Go-side view of it.
type Header struct {
	// Addr is the virtual address the file was mapped at when the image
	// was produced; Load validates this against the address it actually
	// mapped the file at after accounting for Go's mapping not being
	// guaranteed to land at the same address (see Load's doc).
	Addr uintptr
	// End is the address one past the end of the mapped image, i.e.
	// Addr+size; part of the anchor pair but not independently validated
	// by Load beyond being read back from the image.
	End uintptr
	Magic [8]byte

	// Params and Instructions are raw pointers embedded in the image,
	// already fixed up (by whatever produced the file) for the exact
	// virtual address Load remaps at; once the remap lands at Addr, they
	// are valid Go pointers into the mapping without further adjustment.
	Params       *paramlist.List
	Instructions *instruction.List
}

// headerSize is the minimum byte length of a well-formed Header: Addr(8) +
// End(8) + Magic(8) + Params(8) + Instructions(8).
const headerSize = 5 * 8

// Image is a loaded input file: its header, and the memory mapping backing
// it (kept alive by StaticRef until Close).
type Image struct {
	Header    Header
	StaticRef *refcount.Handle

	data []byte
}

// Load maps path read-only and validates its header. The image carries
// internal pointers fixed up for the virtual address it was originally
// produced at (the "mapping anchor" of spec.md §6); since the initial mmap
// is not guaranteed to land there, Load remaps at the recorded address with
// MAP_FIXED when the two differ, exactly as a position-dependent loader
// would, and fails with a RESOURCE error if that address is unavailable.
func Load(path string) (*Image, status.Code) {
	f, err := os.Open(path)
	if err != nil {
		return nil, status.Make(status.ModuleInput, status.Resource)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, status.Make(status.ModuleInput, status.Resource)
	}
	size := int(st.Size())
	if size < headerSize {
		return nil, status.Make(status.ModuleInput, status.ValueErr)
	}
	fd := int(f.Fd())

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, status.Make(status.ModuleInput, status.Resource)
	}

	anchor := *(*uintptr)(unsafe.Pointer(&data[0]))
	actual := uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	if anchor != actual {
		if err := unix.Munmap(data); err != nil {
			return nil, status.Make(status.ModuleInput, status.Resource)
		}
		remapped, mErr := mmapFixed(anchor, fd, size)
		if mErr != nil {
			return nil, status.Make(status.ModuleInput, status.Resource)
		}
		data = remapped
	}

	hdr, code := parseHeader(data)
	if code.IsError() {
		unix.Munmap(data)
		return nil, code
	}

	img := &Image{Header: hdr, data: data}
	img.StaticRef = refcount.Alloc(func(any) {
		unix.Munmap(img.data)
	}, img)
	return img, status.Success
}

// Close releases the image's mapping by decrementing StaticRef. Any Pointer
// tagged with StaticRef remains safe to decrement afterwards (per
// refcount's "never reused" invariant, a decrement past zero is a misuse
// the caller must avoid by not retaining untracked copies).
func (img *Image) Close() {
	img.StaticRef.Decrement()
}

// mmapFixed remaps fd at the exact virtual address addr, the "anchor remap"
// spec.md §6 requires for images with internal pointers fixed up to a
// specific load address. golang.org/x/sys/unix.Mmap does not expose an
// address parameter, so this goes through the raw mmap(2) syscall directly
// (the same syscall unix.Mmap itself wraps).
func mmapFixed(addr uintptr, fd, length int) ([]byte, error) {
	ret, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(length),
		uintptr(unix.PROT_READ),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return nil, errno
	}
	if ret != addr {
		return nil, unix.EINVAL
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ret)), length), nil
}

func parseHeader(data []byte) (Header, status.Code) {
	var hdr Header

	wordSize := unsafe.Sizeof(uintptr(0))
	if uintptr(len(data)) < uintptr(headerSize) {
		return Header{}, status.Make(status.ModuleInput, status.ValueErr)
	}

	hdr.Addr = *(*uintptr)(unsafe.Pointer(&data[0]))
	hdr.End = *(*uintptr)(unsafe.Pointer(&data[wordSize]))

	magicOffset := 2 * wordSize
	copy(hdr.Magic[:], data[magicOffset:magicOffset+uintptr(len(Magic))+1])
	if string(hdr.Magic[:len(Magic)]) != Magic || hdr.Magic[len(Magic)] != 0 {
		return Header{}, status.Make(status.ModuleInput, status.ValueErr)
	}

	paramsOffset := magicOffset + wordSize
	instructionsOffset := paramsOffset + wordSize

	hdr.Params = *(**paramlist.List)(unsafe.Pointer(&data[paramsOffset]))
	hdr.Instructions = *(**instruction.List)(unsafe.Pointer(&data[instructionsOffset]))

	return hdr, status.Success
}
