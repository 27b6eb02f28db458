// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidIWiMagic is returned when a buffer does not start with "IWi".
	ErrInvalidIWiMagic = errors.New("invalid IWi magic")
	// ErrUnsupportedIWiVersion is returned for IWi versions this package
	// cannot decode.
	ErrUnsupportedIWiVersion = errors.New("unsupported IWi version")
	// ErrUnsupportedIWiFormat is returned for pixel formats this package
	// cannot decode.
	ErrUnsupportedIWiFormat = errors.New("unsupported IWi pixel format")
	// ErrTruncatedIWiData is returned when the selected mip payload is
	// shorter than the header-declared dimensions require.
	ErrTruncatedIWiData = errors.New("truncated IWi data")
)

// iwiMagic is the three-byte file signature.
const iwiMagic = "IWi"

// IWiVersion identifies the IWi container revision.
type IWiVersion uint8

const (
	IWiVersionCoD2 IWiVersion = 0x05 // CoD2
	IWiVersionCoD4 IWiVersion = 0x06 // CoD4 & CoD5
	IWiVersionMW2  IWiVersion = 0x08 // MW2 & MW3
	IWiVersionBO1  IWiVersion = 0x0D // Black Ops
	IWiVersionBO2  IWiVersion = 0x1B // Black Ops II
)

// Supported returns true for versions this package can decode.
func (v IWiVersion) Supported() bool {
	switch v {
	case IWiVersionCoD2, IWiVersionCoD4, IWiVersionMW2, IWiVersionBO1, IWiVersionBO2:
		return true
	}
	return false
}

// String returns a human-readable version name.
func (v IWiVersion) String() string {
	switch v {
	case IWiVersionCoD2:
		return "v5 (CoD2)"
	case IWiVersionCoD4:
		return "v6 (CoD4/CoD5)"
	case IWiVersionMW2:
		return "v8 (MW2/MW3)"
	case IWiVersionBO1:
		return "v13 (BO1)"
	case IWiVersionBO2:
		return "v27 (BO2)"
	default:
		return fmt.Sprintf("v%d (unknown)", uint8(v))
	}
}

// IWiFormat identifies the pixel encoding of the mip payloads.
type IWiFormat uint8

const (
	IWiFormatARGB32 IWiFormat = 0x01
	IWiFormatRGB24  IWiFormat = 0x02
	IWiFormatGA16   IWiFormat = 0x03
	IWiFormatA8     IWiFormat = 0x04
	IWiFormatDXT1   IWiFormat = 0x0B
	IWiFormatDXT3   IWiFormat = 0x0C
	IWiFormatDXT5   IWiFormat = 0x0D
)

// String returns the format mnemonic.
func (f IWiFormat) String() string {
	switch f {
	case IWiFormatARGB32:
		return "ARGB32"
	case IWiFormatRGB24:
		return "RGB24"
	case IWiFormatGA16:
		return "GA16"
	case IWiFormatA8:
		return "A8"
	case IWiFormatDXT1:
		return "DXT1"
	case IWiFormatDXT3:
		return "DXT3"
	case IWiFormatDXT5:
		return "DXT5"
	default:
		return fmt.Sprintf("0x%02X (unknown)", uint8(f))
	}
}

// IWi is a decoded texture container. Image holds the highest mip level,
// already flipped to top-down row order.
type IWi struct {
	Name    string
	Version IWiVersion
	Format  IWiFormat
	Usage   uint8
	Image   TextureImage
}

// mipSpan locates one mip level inside the file buffer.
type mipSpan struct {
	offset int
	size   int
}

// highestMip picks the largest span described by the offset table. first is
// the position right after the table, size is the whole file length.
func highestMip(offsets []uint32, first, size int) mipSpan {
	mips := make([]mipSpan, 0, len(offsets))
	for i := range offsets {
		switch {
		case i == 0:
			mips = append(mips, mipSpan{offset: int(offsets[i]), size: size - int(offsets[i])})
		case i == len(offsets)-i:
			mips = append(mips, mipSpan{offset: first, size: int(offsets[i]) - first})
		default:
			mips = append(mips, mipSpan{offset: int(offsets[i]), size: int(offsets[i-1]) - int(offsets[i])})
		}
	}

	best := 0
	for i := range mips {
		if mips[i].size > mips[best].size {
			best = i
		}
	}
	return mips[best]
}

// ParseIWi decodes an IWi texture file. Only the highest mip level is
// decoded; the result is RGBA8 in top-down row order.
func ParseIWi(data []byte) (*IWi, error) {
	r := NewReader(data)

	magic, err := r.FixedString(3)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}
	if magic != iwiMagic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIWiMagic, magic)
	}

	rawVersion, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}
	version := IWiVersion(rawVersion)
	if !version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIWiVersion, version)
	}

	// MW2/MW3 shift the info block to 0x08.
	if version == IWiVersionMW2 {
		if err := r.Skip(0x08 - r.Offset()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
		}
	}

	iwi := &IWi{Version: version}
	rawFormat, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}
	iwi.Format = IWiFormat(rawFormat)
	if iwi.Usage, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}
	width, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}
	height, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}
	if _, err := r.Uint16(); err != nil { // depth, unused
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}

	offsetCount := 4
	switch version {
	case IWiVersionBO1:
		offsetCount = 8
		err = r.Skip(0x10 - r.Offset())
	case IWiVersionBO2:
		offsetCount = 8
		err = r.Skip(0x20 - r.Offset())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
	}

	offsets := make([]uint32, offsetCount)
	for i := range offsets {
		if offsets[i], err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedIWiData, err)
		}
	}

	mip := highestMip(offsets, r.Offset(), len(data))
	if mip.size <= 0 || mip.offset < 0 || mip.offset >= len(data) {
		return nil, fmt.Errorf("%w: empty mip level (offset %d, size %d)", ErrTruncatedIWiData, mip.offset, mip.size)
	}
	end := mip.offset + mip.size
	if end > len(data) {
		end = len(data)
	}
	payload := data[mip.offset:end]

	pixels, err := decodePixels(iwi.Format, payload, int(width), int(height))
	if err != nil {
		return nil, err
	}
	flipVertical(pixels, int(width), int(height))

	iwi.Image = TextureImage{Width: int(width), Height: int(height), Pixels: pixels}
	return iwi, nil
}

// decodePixels converts one mip payload to RGBA8 in the source bottom-up
// row order. The caller applies the vertical flip.
func decodePixels(format IWiFormat, payload []byte, width, height int) ([]byte, error) {
	switch format {
	case IWiFormatDXT1, IWiFormatDXT3, IWiFormatDXT5:
		return decodeDXT(format, payload, width, height)
	case IWiFormatARGB32:
		return decodeARGB32(payload, width, height)
	case IWiFormatRGB24:
		return decodeRGB24(payload, width, height)
	case IWiFormatGA16:
		return decodeGA16(payload, width, height)
	case IWiFormatA8:
		return decodeA8(payload, width, height)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIWiFormat, format)
	}
}

func checkPayload(payload []byte, need int) error {
	if len(payload) < need {
		return fmt.Errorf("%w: %d bytes of pixel data, need %d", ErrTruncatedIWiData, len(payload), need)
	}
	return nil
}

func decodeARGB32(payload []byte, width, height int) ([]byte, error) {
	if err := checkPayload(payload, width*height*4); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4+0] = payload[i*4+1]
		out[i*4+1] = payload[i*4+2]
		out[i*4+2] = payload[i*4+3]
		out[i*4+3] = payload[i*4+0]
	}
	return out, nil
}

func decodeRGB24(payload []byte, width, height int) ([]byte, error) {
	if err := checkPayload(payload, width*height*3); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4+0] = payload[i*3+0]
		out[i*4+1] = payload[i*3+1]
		out[i*4+2] = payload[i*3+2]
		out[i*4+3] = 255
	}
	return out, nil
}

func decodeGA16(payload []byte, width, height int) ([]byte, error) {
	if err := checkPayload(payload, width*height*2); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		l := payload[i*2+0]
		out[i*4+0] = l
		out[i*4+1] = l
		out[i*4+2] = l
		out[i*4+3] = payload[i*2+1]
	}
	return out, nil
}

func decodeA8(payload []byte, width, height int) ([]byte, error) {
	if err := checkPayload(payload, width*height); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4+0] = 255
		out[i*4+1] = 255
		out[i*4+2] = 255
		out[i*4+3] = payload[i]
	}
	return out, nil
}

// ParseIWiFile reads and decodes an IWi texture from disk.
func ParseIWiFile(path string) (*IWi, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	iwi, err := ParseIWi(data)
	if err != nil {
		return nil, err
	}
	iwi.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return iwi, nil
}
