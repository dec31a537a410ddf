//go:build windows

package version

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsReader loads version-information resources through the Win32
// version API.
type windowsReader struct{}

func newPlatformReader() InfoReader {
	return windowsReader{}
}

func (windowsReader) Read(path string) (Block, error) {
	size, err := windows.GetFileVersionInfoSize(path, nil)
	if err != nil {
		return nil, fmt.Errorf("version info size: %w", err)
	}
	if size == 0 {
		return nil, fmt.Errorf("no version info")
	}

	buf := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafe.Pointer(&buf[0])); err != nil {
		return nil, fmt.Errorf("version info: %w", err)
	}
	return &windowsBlock{buf: buf}, nil
}

// windowsBlock wraps the raw version-info buffer. All pointer arithmetic on
// the OS-defined layout is confined to the query method; the returned
// pointer aliases buf and is only dereferenced while buf is live.
type windowsBlock struct {
	buf []byte
}

func (b *windowsBlock) query(subBlock string) (unsafe.Pointer, uint32, error) {
	var ptr unsafe.Pointer
	var length uint32
	err := windows.VerQueryValue(unsafe.Pointer(&b.buf[0]), subBlock, unsafe.Pointer(&ptr), &length)
	if err != nil {
		return nil, 0, err
	}
	return ptr, length, nil
}

func (b *windowsBlock) Translations() []Translation {
	ptr, length, err := b.query(`\VarFileInfo\Translation`)
	if err != nil || length == 0 {
		return nil
	}
	// length is in bytes; each table entry is a pair of uint16s.
	count := int(length) / int(unsafe.Sizeof(Translation{}))
	if count == 0 {
		return nil
	}
	table := unsafe.Slice((*Translation)(ptr), count)
	out := make([]Translation, count)
	copy(out, table)
	return out
}

func (b *windowsBlock) ProductName(tr Translation) (string, bool) {
	subBlock := fmt.Sprintf(`\StringFileInfo\%04x%04x\ProductName`, tr.Language, tr.CodePage)
	ptr, length, err := b.query(subBlock)
	if err != nil || length == 0 {
		return "", false
	}
	// length is in UTF-16 code units and includes the terminator. The
	// decode deliberately does not stop at interior NULs: some binaries
	// report a length that runs past the terminator into adjacent data,
	// and the collector strips that server-side.
	chars := unsafe.Slice((*uint16)(ptr), int(length))
	if chars[len(chars)-1] == 0 {
		chars = chars[:len(chars)-1]
	}
	return string(utf16.Decode(chars)), true
}
