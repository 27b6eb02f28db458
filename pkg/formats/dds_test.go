package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestParseDDS_MagicValidation(t *testing.T) {
	data := makeDDS("DXT1", 4, 4, redDXT1Block)

	if _, err := ParseDDS(data); err != nil {
		t.Errorf("valid file: %v", err)
	}

	bad := append([]byte("DDX "), data[4:]...)
	if _, err := ParseDDS(bad); !errors.Is(err, ErrInvalidDDSMagic) {
		t.Errorf("invalid magic: got %v", err)
	}
	if _, err := ParseDDS(data[:64]); !errors.Is(err, ErrTruncatedDDSData) {
		t.Errorf("truncated header: got %v", err)
	}
}

func TestParseDDS_UnsupportedFourCC(t *testing.T) {
	data := makeDDS("DX10", 4, 4, make([]byte, 16))
	if _, err := ParseDDS(data); !errors.Is(err, ErrUnsupportedDDSFormat) {
		t.Errorf("got %v", err)
	}
}

func TestParseDDS_TruncatedPayload(t *testing.T) {
	data := makeDDS("DXT1", 4, 4, redDXT1Block[:4])
	if _, err := ParseDDS(data); !errors.Is(err, ErrTruncatedDDSData) {
		t.Errorf("got %v", err)
	}
}

func TestParseDDS_MatchesIWiDecode(t *testing.T) {
	// A converted texture must decode pixel-identical to its IWi source.
	block := []byte{0xFF, 0xFF, 0x00, 0x00, 0x1B, 0xE4, 0x1B, 0xE4}

	iwi, err := ParseIWi(makeIWi(5, uint8(IWiFormatDXT1), 4, 4, block))
	if err != nil {
		t.Fatalf("ParseIWi: %v", err)
	}
	dds, err := ParseDDS(makeDDS("DXT1", 4, 4, block))
	if err != nil {
		t.Fatalf("ParseDDS: %v", err)
	}

	if iwi.Image.Width != dds.Image.Width || iwi.Image.Height != dds.Image.Height {
		t.Fatalf("dimensions differ: %dx%d vs %dx%d",
			iwi.Image.Width, iwi.Image.Height, dds.Image.Width, dds.Image.Height)
	}
	if !bytes.Equal(iwi.Image.Pixels, dds.Image.Pixels) {
		t.Error("pixel buffers differ between the IWi and DDS paths")
	}
}

// makeDDS assembles a minimal converter-style container: magic, 124-byte
// header with dimensions and fourCC, then the payload.
func makeDDS(fourCC string, width, height uint32, payload []byte) []byte {
	header := make([]byte, 128)
	copy(header, ddsMagic)
	binary.LittleEndian.PutUint32(header[4:], ddsHeaderSize)
	binary.LittleEndian.PutUint32(header[12:], height)
	binary.LittleEndian.PutUint32(header[16:], width)
	copy(header[84:], fourCC)
	return append(header, payload...)
}
