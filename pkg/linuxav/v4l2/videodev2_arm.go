//go:build linux && arm && !arm64

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2FrmsizeDiscrete{})]byte{}
	_ [24]byte  = [unsafe.Sizeof(v4l2FrmsizeStepwise{})]byte{}
	_ [44]byte  = [unsafe.Sizeof(v4l2Frmsizeenum{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Fract{})]byte{}
	_ [52]byte  = [unsafe.Sizeof(v4l2Frmivalenum{})]byte{}
	_ [124]byte = [unsafe.Sizeof(v4l2BTTimings{})]byte{}
	_ [132]byte = [unsafe.Sizeof(v4l2DVTimings{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2RequestBuffers{})]byte{}
	_ [68]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{} // Smaller on 32-bit due to timeval
)

// IOCTL constants for 32-bit ARM
// Note: Most values are the same as 64-bit since the struct sizes are identical.
// v4l2_format, v4l2_buffer, and v4l2_event differ due to pointer/timeval sizes.
const (
	vidiocQuerycap           = 0x80685600
	vidiocEnumFmt            = 0xc0405602
	vidiocGFmt               = 0xc0cc5604 // v4l2_format is 204 bytes on 32-bit
	vidiocSFmt               = 0xc0cc5605
	vidiocReqbufs            = 0xc0145608
	vidiocQuerybuf           = 0xc0445609 // v4l2_buffer is 68 bytes on 32-bit
	vidiocQbuf               = 0xc044560f
	vidiocDqbuf              = 0xc0445611
	vidiocStreamon           = 0x40045612
	vidiocStreamoff          = 0x40045613
	vidiocEnumFramesizes     = 0xc02c564a
	vidiocEnumFrameintervals = 0xc034564b
	vidiocGDVTimings         = 0xc0845658 // v4l2_dv_timings is 132 bytes on both
	vidiocSDVTimings         = 0x40845657
	vidiocQueryDVTimings     = 0xc0845659
)

// v4l2Capability has size 104 bytes (same as 64-bit).
type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// v4l2Fmtdesc has size 64 bytes (same as 64-bit).
type v4l2Fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

// v4l2FrmsizeDiscrete has size 8 bytes.
type v4l2FrmsizeDiscrete struct {
	width  uint32
	height uint32
}

// v4l2FrmsizeStepwise has size 24 bytes.
type v4l2FrmsizeStepwise struct {
	minWidth   uint32
	maxWidth   uint32
	stepWidth  uint32
	minHeight  uint32
	maxHeight  uint32
	stepHeight uint32
}

// v4l2Frmsizeenum has size 44 bytes (same as 64-bit).
type v4l2Frmsizeenum struct {
	index       uint32
	pixelFormat uint32
	typ         uint32
	discrete    v4l2FrmsizeDiscrete
	_           [16]byte
	reserved    [2]uint32
}

// v4l2Fract has size 8 bytes.
type v4l2Fract struct {
	numerator   uint32
	denominator uint32
}

// v4l2Frmivalenum has size 52 bytes (same as 64-bit).
type v4l2Frmivalenum struct {
	index       uint32
	pixelFormat uint32
	width       uint32
	height      uint32
	typ         uint32
	discrete    v4l2Fract
	_           [16]byte
	reserved    [2]uint32
}

// v4l2BTTimings has size 124 bytes.
type v4l2BTTimings struct {
	width         uint32
	height        uint32
	interlaced    uint32
	_             uint32
	pixelclock    uint64
	hfrontporch   uint32
	hsync         uint32
	hbackporch    uint32
	vfrontporch   uint32
	vsync         uint32
	vbackporch    uint32
	ilVfrontporch uint32
	ilVsync       uint32
	ilVbackporch  uint32
	standards     uint32
	flags         uint32
	pictureAspect v4l2Fract
	cea861Vic     uint8
	hdmiVic       uint8
	reserved      [46]byte
}

// v4l2DVTimings has size 132 bytes.
type v4l2DVTimings struct {
	typ uint32
	bt  v4l2BTTimings
	_   [4]byte
}

// v4l2PixFormat has size 48 bytes (same as 64-bit).
type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// v4l2Format has size 204 bytes on 32-bit (union is 4-byte aligned).
type v4l2Format struct {
	typ uint32
	pix v4l2PixFormat // union with window/vbi/sliced/sdr/meta
	_   [152]byte     // padding to union size 200
}

// v4l2RequestBuffers has size 20 bytes (same as 64-bit).
type v4l2RequestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]byte
}

// v4l2Buffer has size 68 bytes on 32-bit (struct timeval is 8 bytes).
type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp [8]byte  // struct timeval - 8 bytes on 32-bit
	timecode  [16]byte // struct v4l2_timecode
	sequence  uint32
	memory    uint32
	offset    uint32 // m union, mmap offset
	length    uint32
	reserved2 uint32
	requestFd uint32
}
