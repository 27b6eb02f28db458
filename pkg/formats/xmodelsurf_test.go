package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestParseXModelSurf_VersionSupport(t *testing.T) {
	tests := []struct {
		name    string
		version uint16
		wantErr bool
	}{
		{"v14", 14, false},
		{"v20", 20, false},
		{"v25", 25, false},
		{"v16 unsupported", 16, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			binary.Write(&buf, binary.LittleEndian, tt.version)
			binary.Write(&buf, binary.LittleEndian, uint16(0)) // no surfaces

			_, err := ParseXModelSurf(buf.Bytes(), nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("version %d: got error=%v, wantErr=%v", tt.version, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedXModelSurfVersion) {
				t.Errorf("expected ErrUnsupportedXModelSurfVersion, got %v", err)
			}
		})
	}
}

func TestParseXModelSurf_Truncated(t *testing.T) {
	if _, err := ParseXModelSurf(nil, nil); !errors.Is(err, ErrTruncatedXModelSurfData) {
		t.Errorf("empty data: got %v", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	buf.Write(make([]byte, 5)) // not even a surface header
	if _, err := ParseXModelSurf(buf.Bytes(), nil); !errors.Is(err, ErrTruncatedXModelSurfData) {
		t.Errorf("truncated surface: got %v", err)
	}
}

func TestParseXModelSurf_V20Unrigged(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	writeSurfV20Unrigged(&buf, 0, 3, [][3]uint16{{0, 1, 2}})

	surf, err := ParseXModelSurf(buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}
	if len(surf.Surfaces) != 1 {
		t.Fatalf("surface count: got %d", len(surf.Surfaces))
	}

	s := surf.Surfaces[0]
	if len(s.Vertices) != 3 {
		t.Fatalf("vertex count: got %d", len(s.Vertices))
	}

	// The stored (0, 1, 2) comes out with the last two indices swapped.
	if len(s.Triangles) != 1 || s.Triangles[0] != (Triangle{0, 2, 1}) {
		t.Errorf("triangles: got %v, want [{0 2 1}]", s.Triangles)
	}

	// Unskinned surfaces carry no weights.
	for i, v := range s.Vertices {
		if len(v.Weights) != 0 {
			t.Errorf("vertex %d: unexpected weights %v", i, v.Weights)
		}
	}

	// Stored v of 0.25 flips to 0.75.
	if uv := s.Vertices[0].UV; !floatNear(uv[0], 0.25) || !floatNear(uv[1], 0.75) {
		t.Errorf("uv: got %v, want [0.25 0.75]", uv)
	}
	if c := s.Vertices[0].Color; !floatNear(c.R, 1) || !floatNear(c.A, 1) {
		t.Errorf("color: got %+v", c)
	}
}

func TestParseXModelSurf_V20Weights(t *testing.T) {
	bones := make([]Bone, 3)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	writeSurfV20Rigged(&buf, 1, []extraWeight{{bone: 2, packed: 16384}})

	surf, err := ParseXModelSurf(buf.Bytes(), bones)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}

	w := surf.Surfaces[0].Vertices[0].Weights
	if len(w) != 2 {
		t.Fatalf("weight count: got %d, want 2", len(w))
	}
	extra := float32(16384) / 65535
	if w[1].Bone != 2 || !floatNear(w[1].Influence, extra) {
		t.Errorf("extra weight: got %+v", w[1])
	}
	// The primary weight absorbs whatever the extras leave over.
	if w[0].Bone != 1 || !floatNear(w[0].Influence, 1-extra) {
		t.Errorf("primary weight: got %+v", w[0])
	}
}

func TestParseXModelSurf_CorruptWeightDropsSurfaceOnly(t *testing.T) {
	bones := make([]Bone, 3)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	writeSurfV20Rigged(&buf, 1, nil) // fine
	writeSurfV20Rigged(&buf, 5, nil) // bone 5 of 3

	surf, err := ParseXModelSurf(buf.Bytes(), bones)
	if !errors.Is(err, ErrCorruptWeight) {
		t.Fatalf("expected ErrCorruptWeight, got %v", err)
	}
	// The well-formed sibling still decodes.
	if len(surf.Surfaces) != 1 {
		t.Fatalf("surface count: got %d, want 1", len(surf.Surfaces))
	}
	if w := surf.Surfaces[0].Vertices[0].Weights; w[0].Bone != 1 {
		t.Errorf("surviving surface weights: got %+v", w)
	}
}

func TestParseXModelSurf_NoSkeletonSkipsBoneCheck(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	writeSurfV20Rigged(&buf, 42, nil)

	surf, err := ParseXModelSurf(buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}
	if len(surf.Surfaces) != 1 {
		t.Fatalf("surface count: got %d", len(surf.Surfaces))
	}
}

func TestParseXModelSurf_DefaultBoneBinding(t *testing.T) {
	bones := make([]Bone, 3)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	writeSurfV20Unrigged(&buf, 2, 3, [][3]uint16{{0, 1, 2}})

	surf, err := ParseXModelSurf(buf.Bytes(), bones)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}

	// Every vertex rides the surface's header bone with full influence.
	for i, v := range surf.Surfaces[0].Vertices {
		if len(v.Weights) != 1 || v.Weights[0].Bone != 2 || !floatNear(v.Weights[0].Influence, 1) {
			t.Errorf("vertex %d weights: got %+v, want [{2 1}]", i, v.Weights)
		}
	}
}

func TestParseXModelSurf_DefaultBoneOutOfRange(t *testing.T) {
	bones := make([]Bone, 3)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	writeSurfV20Unrigged(&buf, 7, 1, nil) // bone 7 of 3

	surf, err := ParseXModelSurf(buf.Bytes(), bones)
	if !errors.Is(err, ErrCorruptWeight) {
		t.Fatalf("expected ErrCorruptWeight, got %v", err)
	}
	if len(surf.Surfaces) != 0 {
		t.Errorf("surface count: got %d, want 0", len(surf.Surfaces))
	}
}

func TestParseXModelSurf_V14DefaultBoneBinding(t *testing.T) {
	bones := make([]Bone, 2)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(14))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(3)) // vertices
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // triangles
	buf.Write(make([]byte, 2))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // bone field

	buf.WriteByte(3)
	for _, idx := range []uint16{0, 1, 2} {
		binary.Write(&buf, binary.LittleEndian, idx)
	}
	for i := 0; i < 3; i++ {
		binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 1})
		binary.Write(&buf, binary.LittleEndian, [2]float32{0, 0})
		binary.Write(&buf, binary.LittleEndian, [3]float32{float32(i), 0, 0})
	}

	surf, err := ParseXModelSurf(buf.Bytes(), bones)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}
	for i, v := range surf.Surfaces[0].Vertices {
		if len(v.Weights) != 1 || v.Weights[0].Bone != 1 || !floatNear(v.Weights[0].Influence, 1) {
			t.Errorf("vertex %d weights: got %+v, want [{1 1}]", i, v.Weights)
		}
	}
}

func TestParseXModelSurf_V14Strips(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(14))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	// Surface header: one unrigged surface bound to bone 0.
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(4)) // vertices
	binary.Write(&buf, binary.LittleEndian, uint16(2)) // triangles
	buf.Write(make([]byte, 2))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // bone field

	// One strip of 4 indices: (0,1,2) and (2,1,3).
	buf.WriteByte(4)
	for _, idx := range []uint16{0, 1, 2, 3} {
		binary.Write(&buf, binary.LittleEndian, idx)
	}

	for i := 0; i < 4; i++ {
		binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 1})    // normal
		binary.Write(&buf, binary.LittleEndian, [2]float32{0.25, 0.25}) // uv
		binary.Write(&buf, binary.LittleEndian, [3]float32{float32(i), 0, 0})
	}

	surf, err := ParseXModelSurf(buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}

	s := surf.Surfaces[0]
	if len(s.Triangles) != 2 {
		t.Fatalf("triangle count: got %d, want 2", len(s.Triangles))
	}
	if s.Triangles[0] != (Triangle{0, 2, 1}) {
		t.Errorf("first triangle: got %v, want {0 2 1}", s.Triangles[0])
	}
	if s.Triangles[1] != (Triangle{2, 3, 1}) {
		t.Errorf("second triangle: got %v, want {2 3 1}", s.Triangles[1])
	}
	if len(s.Vertices) != 4 {
		t.Errorf("vertex count: got %d", len(s.Vertices))
	}
	// v14 has no stored vertex colors.
	if c := s.Vertices[0].Color; c.R != 1 || c.A != 1 {
		t.Errorf("default color: got %+v", c)
	}
}

func TestParseXModelSurf_V25Unrigged(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(25))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	buf.Write(make([]byte, 3))
	binary.Write(&buf, binary.LittleEndian, uint16(3)) // vertices
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // triangles
	binary.Write(&buf, binary.LittleEndian, uint16(3)) // matches: unrigged
	buf.Write(make([]byte, 4))

	for i := 0; i < 3; i++ {
		binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 1})
		buf.Write([]byte{255, 255, 255, 255})
		binary.Write(&buf, binary.LittleEndian, [2]float32{0, 0})
		buf.Write(make([]byte, 24))
		binary.Write(&buf, binary.LittleEndian, [3]float32{float32(i), 0, 0})
	}
	for _, idx := range []uint16{0, 1, 2} {
		binary.Write(&buf, binary.LittleEndian, idx)
	}

	surf, err := ParseXModelSurf(buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}

	s := surf.Surfaces[0]
	if len(s.Vertices) != 3 || len(s.Triangles) != 1 {
		t.Fatalf("surface: %d vertices, %d triangles", len(s.Vertices), len(s.Triangles))
	}
	if s.Triangles[0] != (Triangle{0, 2, 1}) {
		t.Errorf("triangle: got %v", s.Triangles[0])
	}
	if len(s.Vertices[0].Weights) != 0 {
		t.Errorf("unexpected weights: %v", s.Vertices[0].Weights)
	}
}

func TestParseXModelSurf_V25DefaultBoneBinding(t *testing.T) {
	bones := make([]Bone, 1)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(25))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	buf.Write(make([]byte, 3))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // vertices
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // triangles
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // matches: unrigged
	buf.Write(make([]byte, 4))

	binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 1})
	buf.Write([]byte{255, 255, 255, 255})
	binary.Write(&buf, binary.LittleEndian, [2]float32{0, 0})
	buf.Write(make([]byte, 24))
	binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 0, 0})

	surf, err := ParseXModelSurf(buf.Bytes(), bones)
	if err != nil {
		t.Fatalf("ParseXModelSurf: %v", err)
	}

	// v25 stores no bone field for non-rigged surfaces; they bind to bone 0.
	w := surf.Surfaces[0].Vertices[0].Weights
	if len(w) != 1 || w[0].Bone != 0 || !floatNear(w[0].Influence, 1) {
		t.Errorf("weights: got %+v, want [{0 1}]", w)
	}
}

type extraWeight struct {
	bone   uint16
	packed uint16
}

// writeSurfV20Unrigged appends a v20 surface bound rigidly to the given
// bone with vertexCount vertices at x = 0, 1, ... and the given raw index
// triples.
func writeSurfV20Unrigged(buf *bytes.Buffer, bone uint16, vertexCount int, triangles [][3]uint16) {
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, uint16(vertexCount))
	binary.Write(buf, binary.LittleEndian, uint16(len(triangles)))
	binary.Write(buf, binary.LittleEndian, bone)

	for i := 0; i < vertexCount; i++ {
		writeVertexV20(buf, float32(i))
	}
	for _, tri := range triangles {
		binary.Write(buf, binary.LittleEndian, tri)
	}
}

// writeSurfV20Rigged appends a skinned v20 surface with a single vertex
// bound to the given bone plus optional extra weights, and one degenerate
// triangle to keep the framing honest.
func writeSurfV20Rigged(buf *bytes.Buffer, bone uint16, extras []extraWeight) {
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(0xFFFF))
	buf.Write(make([]byte, 2))

	binary.Write(buf, binary.LittleEndian, [3]float32{0, 0, 1})
	buf.Write([]byte{255, 255, 255, 255})
	binary.Write(buf, binary.LittleEndian, [2]float32{0.25, 0.25})
	buf.Write(make([]byte, 24))
	buf.WriteByte(byte(len(extras)))
	binary.Write(buf, binary.LittleEndian, bone)
	binary.Write(buf, binary.LittleEndian, [3]float32{0, 0, 0})
	if len(extras) > 0 {
		buf.WriteByte(0)
		for _, e := range extras {
			binary.Write(buf, binary.LittleEndian, e.bone)
			buf.Write(make([]byte, 12))
			binary.Write(buf, binary.LittleEndian, e.packed)
		}
	}

	binary.Write(buf, binary.LittleEndian, [3]uint16{0, 0, 0})
}

// writeVertexV20 appends one unskinned v20 vertex at (x, 0, 0).
func writeVertexV20(buf *bytes.Buffer, x float32) {
	binary.Write(buf, binary.LittleEndian, [3]float32{0, 0, 1})
	buf.Write([]byte{255, 255, 255, 255})
	binary.Write(buf, binary.LittleEndian, [2]float32{0.25, 0.25})
	buf.Write(make([]byte, 24))
	binary.Write(buf, binary.LittleEndian, [3]float32{x, 0, 0})
}
