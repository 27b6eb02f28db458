package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// solid red 4x4 DXT1 block: c0 = pure red in 565, all indices 0
var redDXT1Block = []byte{0x00, 0xF8, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

func TestParseIWi_MagicValidation(t *testing.T) {
	data := makeIWi(5, uint8(IWiFormatA8), 1, 1, []byte{0xFF})

	if _, err := ParseIWi(data); err != nil {
		t.Errorf("valid file: %v", err)
	}

	bad := append([]byte("XWi"), data[3:]...)
	if _, err := ParseIWi(bad); !errors.Is(err, ErrInvalidIWiMagic) {
		t.Errorf("invalid magic: got %v", err)
	}
	if _, err := ParseIWi(data[:2]); !errors.Is(err, ErrTruncatedIWiData) {
		t.Errorf("truncated magic: got %v", err)
	}
}

func TestParseIWi_VersionSupport(t *testing.T) {
	tests := []struct {
		name    string
		version uint8
		wantErr bool
	}{
		{"v5 CoD2", 5, false},
		{"v6 CoD4", 6, false},
		{"v8 MW2", 8, false},
		{"v13 BO1", 13, false},
		{"v27 BO2", 27, false},
		{"v7 unsupported", 7, true},
		{"v14 unsupported", 14, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeIWi(tt.version, uint8(IWiFormatA8), 1, 1, []byte{0xFF})
			iwi, err := ParseIWi(data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("version %d: got error=%v, wantErr=%v", tt.version, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedIWiVersion) {
					t.Errorf("expected ErrUnsupportedIWiVersion, got %v", err)
				}
				return
			}
			// Every header layout must land on the same single pixel.
			if iwi.Image.Width != 1 || iwi.Image.Height != 1 || iwi.Image.Pixels[3] != 0xFF {
				t.Errorf("decoded image: %dx%d, pixels %v", iwi.Image.Width, iwi.Image.Height, iwi.Image.Pixels)
			}
		})
	}
}

func TestParseIWi_UnsupportedFormat(t *testing.T) {
	data := makeIWi(5, 0x99, 1, 1, []byte{0xFF})
	if _, err := ParseIWi(data); !errors.Is(err, ErrUnsupportedIWiFormat) {
		t.Errorf("got %v", err)
	}
}

func TestParseIWi_DXT1Solid(t *testing.T) {
	data := makeIWi(5, uint8(IWiFormatDXT1), 4, 4, redDXT1Block)

	iwi, err := ParseIWi(data)
	if err != nil {
		t.Fatalf("ParseIWi: %v", err)
	}
	if iwi.Format != IWiFormatDXT1 {
		t.Errorf("format: got %s", iwi.Format)
	}
	if len(iwi.Image.Pixels) != 4*4*4 {
		t.Fatalf("pixel buffer: got %d bytes", len(iwi.Image.Pixels))
	}
	for i := 0; i < 16; i++ {
		p := iwi.Image.Pixels[i*4:]
		if p[0] != 255 || p[1] != 0 || p[2] != 0 || p[3] != 255 {
			t.Fatalf("pixel %d: got %v, want opaque red", i, p[:4])
		}
	}
}

func TestParseIWi_VerticalFlip(t *testing.T) {
	// 2x2 A8: source rows (10, 20) and (30, 40), bottom row first on disk.
	data := makeIWi(5, uint8(IWiFormatA8), 2, 2, []byte{10, 20, 30, 40})

	iwi, err := ParseIWi(data)
	if err != nil {
		t.Fatalf("ParseIWi: %v", err)
	}

	alphaAt := func(x, y int) byte { return iwi.Image.Pixels[(y*2+x)*4+3] }
	if alphaAt(0, 0) != 30 || alphaAt(1, 0) != 40 {
		t.Errorf("top row alphas: got %d, %d", alphaAt(0, 0), alphaAt(1, 0))
	}
	if alphaAt(0, 1) != 10 || alphaAt(1, 1) != 20 {
		t.Errorf("bottom row alphas: got %d, %d", alphaAt(0, 1), alphaAt(1, 1))
	}
	// A8 renders white with the stored alpha.
	if iwi.Image.Pixels[0] != 255 {
		t.Errorf("A8 red channel: got %d", iwi.Image.Pixels[0])
	}
}

func TestParseIWi_UncompressedFormats(t *testing.T) {
	tests := []struct {
		name    string
		format  IWiFormat
		payload []byte
		want    [4]byte
	}{
		{"ARGB32", IWiFormatARGB32, []byte{0x80, 10, 20, 30}, [4]byte{10, 20, 30, 0x80}},
		{"RGB24", IWiFormatRGB24, []byte{10, 20, 30}, [4]byte{10, 20, 30, 255}},
		{"GA16", IWiFormatGA16, []byte{100, 0x80}, [4]byte{100, 100, 100, 0x80}},
		{"A8", IWiFormatA8, []byte{0x80}, [4]byte{255, 255, 255, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeIWi(5, uint8(tt.format), 1, 1, tt.payload)
			iwi, err := ParseIWi(data)
			if err != nil {
				t.Fatalf("ParseIWi: %v", err)
			}
			if got := [4]byte(iwi.Image.Pixels); got != tt.want {
				t.Errorf("pixel: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseIWi_TruncatedPayload(t *testing.T) {
	// Header declares 4x4 DXT1 but only half a block follows.
	data := makeIWi(5, uint8(IWiFormatDXT1), 4, 4, redDXT1Block[:4])
	if _, err := ParseIWi(data); !errors.Is(err, ErrTruncatedIWiData) {
		t.Errorf("truncated DXT payload: got %v", err)
	}

	data = makeIWi(5, uint8(IWiFormatRGB24), 2, 2, []byte{1, 2, 3})
	if _, err := ParseIWi(data); !errors.Is(err, ErrTruncatedIWiData) {
		t.Errorf("truncated RGB payload: got %v", err)
	}
}

// makeIWi assembles a single-mip texture file: header, info block and
// offset table at the version's layout, then the payload. Every table
// entry points at the payload so the mip scan lands on the whole of it.
func makeIWi(version, format uint8, width, height uint16, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(iwiMagic)
	buf.WriteByte(version)

	if IWiVersion(version) == IWiVersionMW2 {
		buf.Write(make([]byte, 0x08-buf.Len()))
	}

	buf.WriteByte(format)
	buf.WriteByte(0) // usage
	binary.Write(&buf, binary.LittleEndian, width)
	binary.Write(&buf, binary.LittleEndian, height)
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // depth

	offsetCount := 4
	switch IWiVersion(version) {
	case IWiVersionBO1:
		offsetCount = 8
		buf.Write(make([]byte, 0x10-buf.Len()))
	case IWiVersionBO2:
		offsetCount = 8
		buf.Write(make([]byte, 0x20-buf.Len()))
	}

	payloadStart := uint32(buf.Len() + offsetCount*4)
	for i := 0; i < offsetCount; i++ {
		binary.Write(&buf, binary.LittleEndian, payloadStart)
	}
	buf.Write(payload)
	return buf.Bytes()
}
