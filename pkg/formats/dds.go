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
	// ErrInvalidDDSMagic is returned when a buffer does not start with "DDS ".
	ErrInvalidDDSMagic = errors.New("invalid DDS magic")
	// ErrUnsupportedDDSFormat is returned for pixel formats other than the
	// ones the IWi converter emits.
	ErrUnsupportedDDSFormat = errors.New("unsupported DDS pixel format")
	// ErrTruncatedDDSData is returned when the header or top mip payload is
	// incomplete.
	ErrTruncatedDDSData = errors.New("truncated DDS data")
)

const (
	ddsMagic      = "DDS "
	ddsHeaderSize = 124
)

// DDS is a decoded texture from the converter's container. Image holds the
// top mip level, flipped the same way the IWi path flips, so the two paths
// produce identical pixels for the same source texture.
type DDS struct {
	Name  string
	Image TextureImage
}

// ParseDDS decodes the container the external IWi converter writes: a
// 124-byte header followed by DXT1/3/5 blocks or uncompressed ARGB.
func ParseDDS(data []byte) (*DDS, error) {
	r := NewReader(data)

	magic, err := r.FixedString(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	if magic != ddsMagic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDDSMagic, magic)
	}

	headerSize, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	if headerSize != ddsHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrUnsupportedDDSFormat, headerSize)
	}
	if err := r.Skip(4); err != nil { // flags
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	height, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	width, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	// pitch, depth, mip count, 11 reserved words, then the pixel format
	// block: size, flags.
	if err := r.Skip(12 + 44 + 8); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	fourCC, err := r.FixedString(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}
	// rgb bit count, channel masks, caps, reserved.
	if err := r.Skip(20 + 16 + 4); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDDSData, err)
	}

	payload := data[r.Offset():]
	var pixels []byte
	switch fourCC {
	case "DXT1":
		pixels, err = decodeDXT(IWiFormatDXT1, payload, int(width), int(height))
	case "DXT3":
		pixels, err = decodeDXT(IWiFormatDXT3, payload, int(width), int(height))
	case "DXT5":
		pixels, err = decodeDXT(IWiFormatDXT5, payload, int(width), int(height))
	case "":
		pixels, err = decodeARGB32(payload, int(width), int(height))
	default:
		return nil, fmt.Errorf("%w: fourCC %q", ErrUnsupportedDDSFormat, fourCC)
	}
	if err != nil {
		if errors.Is(err, ErrTruncatedIWiData) {
			return nil, fmt.Errorf("%w: %d bytes of pixel data for %dx%d %s", ErrTruncatedDDSData, len(payload), width, height, fourCC)
		}
		return nil, err
	}
	flipVertical(pixels, int(width), int(height))

	return &DDS{Image: TextureImage{Width: int(width), Height: int(height), Pixels: pixels}}, nil
}

// ParseDDSFile reads and decodes a converted texture from disk.
func ParseDDSFile(path string) (*DDS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dds, err := ParseDDS(data)
	if err != nil {
		return nil, err
	}
	dds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return dds, nil
}
