package vaapi

import "strings"

// FourCC is a four-character pixel format code as used by VA-API and DRM.
type FourCC uint32

// MakeFourCC packs four characters into a FourCC, first character in the low byte.
func MakeFourCC(a, b, c, d byte) FourCC {
	return FourCC(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// VA-API surface/image fourccs.
const (
	FourCCNV12 FourCC = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	FourCCP010 FourCC = 'P' | '0'<<8 | '1'<<16 | '0'<<24
	FourCCP012 FourCC = 'P' | '0'<<8 | '1'<<16 | '2'<<24
	FourCCP016 FourCC = 'P' | '0'<<8 | '1'<<16 | '6'<<24
	FourCCYV12 FourCC = 'Y' | 'V'<<8 | '1'<<16 | '2'<<24
	FourCCI420 FourCC = 'I' | '4'<<8 | '2'<<16 | '0'<<24
	FourCCIYUV FourCC = 'I' | 'Y'<<8 | 'U'<<16 | 'V'<<24
	FourCC422H FourCC = '4' | '2'<<8 | '2'<<16 | 'H'<<24
	FourCC444P FourCC = '4' | '4'<<8 | '4'<<16 | 'P'<<24
	FourCCYUY2 FourCC = 'Y' | 'U'<<8 | 'Y'<<16 | '2'<<24
	FourCCUYVY FourCC = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	FourCCY800 FourCC = 'Y' | '8'<<8 | '0'<<16 | '0'<<24
	FourCCBGRA FourCC = 'B' | 'G'<<8 | 'R'<<16 | 'A'<<24
	FourCCRGBA FourCC = 'R' | 'G'<<8 | 'B'<<16 | 'A'<<24
	FourCCBGRX FourCC = 'B' | 'G'<<8 | 'R'<<16 | 'X'<<24
	FourCCRGBX FourCC = 'R' | 'G'<<8 | 'B'<<16 | 'X'<<24
)

// DRM plane formats used when importing single planes.
const (
	DRMFormatR8   FourCC = 'R' | '8'<<8 | ' '<<16 | ' '<<24
	DRMFormatGR88 FourCC = 'G' | 'R'<<8 | '8'<<16 | '8'<<24
	DRMFormatR16  FourCC = 'R' | '1'<<8 | '6'<<16 | ' '<<24
	DRMFormatGR32 FourCC = 'G' | 'R'<<8 | '3'<<16 | '2'<<24
)

func (f FourCC) String() string {
	if f == 0 {
		return "none"
	}
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return strings.TrimRight(string(b), " ")
}

// VA_RT_FORMAT_* render target formats for surface allocation.
const (
	RTFormatYUV420    uint32 = 0x00000001
	RTFormatYUV422    uint32 = 0x00000002
	RTFormatYUV444    uint32 = 0x00000004
	RTFormatYUV400    uint32 = 0x00000010
	RTFormatYUV420_10 uint32 = 0x00000100
	RTFormatYUV420_12 uint32 = 0x00001000
	RTFormatRGB32     uint32 = 0x00020000
)

// ImageFormat identifies the software pixel layout behind a hardware surface.
// FormatNone is never a valid subformat.
type ImageFormat int

const (
	FormatNone ImageFormat = iota
	FormatNV12
	FormatP010
	FormatP012
	FormatP016
	FormatYUV420P
	FormatYUV422P
	FormatYUV444P
	FormatYUYV
	FormatUYVY
	FormatGray8
	FormatBGRA
	FormatRGBA
	FormatBGR0
	FormatRGB0
	formatCount
)

// PlaneDesc describes one image plane.
type PlaneDesc struct {
	Components     int // components per pixel in this plane
	ComponentBytes int // storage bytes per component
	XShift         int // log2 horizontal subsampling
	YShift         int // log2 vertical subsampling
}

// FormatDesc is the plane layout of an ImageFormat.
type FormatDesc struct {
	Format ImageFormat
	Planes []PlaneDesc
}

// NumPlanes returns the number of planes.
func (d FormatDesc) NumPlanes() int { return len(d.Planes) }

// PlaneSize returns the dimensions of plane n for an image of the given size,
// rounding subsampled dimensions up.
func (d FormatDesc) PlaneSize(n, width, height int) (int, int) {
	if n < 0 || n >= len(d.Planes) {
		return 0, 0
	}
	p := d.Planes[n]
	w := (width + (1 << p.XShift) - 1) >> p.XShift
	h := (height + (1 << p.YShift) - 1) >> p.YShift
	return w, h
}

// FormatDescriber maps a pixel format to its plane layout.
type FormatDescriber interface {
	Describe(f ImageFormat) (FormatDesc, bool)
}

type formatMeta struct {
	Name     string
	FourCC   FourCC
	RTFormat uint32
	Planes   []PlaneDesc
}

var (
	luma8    = PlaneDesc{Components: 1, ComponentBytes: 1}
	luma16   = PlaneDesc{Components: 1, ComponentBytes: 2}
	chroma8  = PlaneDesc{Components: 2, ComponentBytes: 1, XShift: 1, YShift: 1}
	chroma16 = PlaneDesc{Components: 2, ComponentBytes: 2, XShift: 1, YShift: 1}
	packed32 = PlaneDesc{Components: 4, ComponentBytes: 1}
)

// Static metadata table, indexed by ImageFormat.
var formatInfo = [formatCount]formatMeta{
	FormatNone:    {"none", 0, 0, nil},
	FormatNV12:    {"nv12", FourCCNV12, RTFormatYUV420, []PlaneDesc{luma8, chroma8}},
	FormatP010:    {"p010", FourCCP010, RTFormatYUV420_10, []PlaneDesc{luma16, chroma16}},
	FormatP012:    {"p012", FourCCP012, RTFormatYUV420_12, []PlaneDesc{luma16, chroma16}},
	FormatP016:    {"p016", FourCCP016, RTFormatYUV420_12, []PlaneDesc{luma16, chroma16}},
	FormatYUV420P: {"yuv420p", FourCCYV12, RTFormatYUV420, []PlaneDesc{luma8, {1, 1, 1, 1}, {1, 1, 1, 1}}},
	FormatYUV422P: {"yuv422p", FourCC422H, RTFormatYUV422, []PlaneDesc{luma8, {1, 1, 1, 0}, {1, 1, 1, 0}}},
	FormatYUV444P: {"yuv444p", FourCC444P, RTFormatYUV444, []PlaneDesc{luma8, luma8, luma8}},
	FormatYUYV:    {"yuyv422", FourCCYUY2, RTFormatYUV422, []PlaneDesc{{2, 1, 0, 0}}},
	FormatUYVY:    {"uyvy422", FourCCUYVY, RTFormatYUV422, []PlaneDesc{{2, 1, 0, 0}}},
	FormatGray8:   {"gray", FourCCY800, RTFormatYUV400, []PlaneDesc{luma8}},
	FormatBGRA:    {"bgra", FourCCBGRA, RTFormatRGB32, []PlaneDesc{packed32}},
	FormatRGBA:    {"rgba", FourCCRGBA, RTFormatRGB32, []PlaneDesc{packed32}},
	FormatBGR0:    {"bgr0", FourCCBGRX, RTFormatRGB32, []PlaneDesc{packed32}},
	FormatRGB0:    {"rgb0", FourCCRGBX, RTFormatRGB32, []PlaneDesc{packed32}},
}

func (f ImageFormat) valid() bool { return f > FormatNone && f < formatCount }

func (f ImageFormat) String() string {
	if f < 0 || f >= formatCount {
		return "unknown"
	}
	return formatInfo[f].Name
}

// FourCC returns the VA fourcc used when allocating surfaces of this format.
// FormatYUV420P maps to YV12, which is what drivers commonly report for it.
func (f ImageFormat) FourCC() FourCC {
	if !f.valid() {
		return 0
	}
	return formatInfo[f].FourCC
}

// RTFormat returns the VA render target format for surfaces of this format.
func (f ImageFormat) RTFormat() uint32 {
	if !f.valid() {
		return 0
	}
	return formatInfo[f].RTFormat
}

// FormatFromFourCC maps a VA image fourcc to an ImageFormat.
func FormatFromFourCC(c FourCC) ImageFormat {
	switch c {
	case FourCCYV12, FourCCI420, FourCCIYUV:
		return FormatYUV420P
	}
	for f := FormatNV12; f < formatCount; f++ {
		if formatInfo[f].FourCC == c {
			return f
		}
	}
	return FormatNone
}

// ParseImageFormat resolves a format by its name.
func ParseImageFormat(name string) (ImageFormat, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f := FormatNV12; f < formatCount; f++ {
		if formatInfo[f].Name == name {
			return f, true
		}
	}
	return FormatNone, false
}

type formatTable struct{}

func (formatTable) Describe(f ImageFormat) (FormatDesc, bool) {
	if !f.valid() {
		return FormatDesc{}, false
	}
	planes := make([]PlaneDesc, len(formatInfo[f].Planes))
	copy(planes, formatInfo[f].Planes)
	return FormatDesc{Format: f, Planes: planes}, true
}

// DefaultFormats describes every ImageFormat known to this package.
var DefaultFormats FormatDescriber = formatTable{}

// FormatList is the ordered, duplicate-free set of subformats the renderer
// can import. It is built once while probing and never mutated afterwards.
type FormatList struct {
	formats []ImageFormat
}

// NewFormatList builds a list from fs, dropping FormatNone and duplicates.
func NewFormatList(fs ...ImageFormat) FormatList {
	var l FormatList
	for _, f := range fs {
		l.add(f)
	}
	return l
}

func (l *FormatList) add(f ImageFormat) bool {
	if f == FormatNone || l.Contains(f) {
		return false
	}
	l.formats = append(l.formats, f)
	return true
}

// Contains reports whether f is a supported subformat.
func (l FormatList) Contains(f ImageFormat) bool {
	for _, g := range l.formats {
		if g == f {
			return true
		}
	}
	return false
}

// Len returns the number of formats.
func (l FormatList) Len() int { return len(l.formats) }

// Formats returns a copy of the formats in probe order.
func (l FormatList) Formats() []ImageFormat {
	out := make([]ImageFormat, len(l.formats))
	copy(out, l.formats)
	return out
}

func (l FormatList) String() string {
	names := make([]string, len(l.formats))
	for i, f := range l.formats {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}
