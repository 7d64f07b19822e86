package floatpool

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// System page size. Read at startup.
var pageSize uintptr

const floatSize = unsafe.Sizeof(float32(0))

// PageAlignedFloats allocates n float32s whose first element sits on a page boundary.
// Model output buffers are sometimes handed straight to an accelerator's DMA engine, which wants this.
func PageAlignedFloats(n int) []float32 {
	if n == 0 {
		return []float32{}
	}
	pad := int(pageSize / floatSize)
	raw := make([]float32, n+pad)
	misalign := uintptr(unsafe.Pointer(&raw[0])) % pageSize
	offset := 0
	if misalign != 0 {
		offset = int((pageSize - misalign) / floatSize)
	}
	return raw[offset : offset+n : offset+n]
}

// IsPageAligned returns true if the first element of buf sits on a page boundary
func IsPageAligned(buf []float32) bool {
	if len(buf) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&buf[0]))%pageSize == 0
}

// PageSize returns the system page size
func PageSize() int {
	return int(pageSize)
}

func init() {
	pageSize = uintptr(unix.Getpagesize())
}
