// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
)

// XModelSurf format errors.
var (
	ErrUnsupportedXModelSurfVersion = errors.New("unsupported xmodelsurf version")
	ErrTruncatedXModelSurfData      = errors.New("truncated xmodelsurf data")
	ErrCorruptWeight                = errors.New("bone weight out of range")
)

// riggedSentinel in a surface header's bone field marks a skinned surface.
// It doubles as the divisor for packed weight influences.
const riggedSentinel = 0xFFFF

// XModelSurf represents a parsed xmodelsurf (mesh) file.
type XModelSurf struct {
	Name     string
	Version  XModelVersion
	Surfaces []Surface
}

// ParseXModelSurf parses xmodelsurf data from a byte slice. bones is the
// bone list of the matching xmodelpart, used to bounds-check vertex weights,
// or nil for an unskinned model. With a skeleton supplied, a non-rigged
// surface binds every vertex to its header's bone with full influence.
// A surface with an out-of-range weight is dropped and reported through
// the returned error; well-formed sibling
// surfaces still decode, so the result may be partial when err != nil.
func ParseXModelSurf(data []byte, bones []Bone) (*XModelSurf, error) {
	r := NewReader(data)

	version, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedXModelSurfData)
	}
	surf := &XModelSurf{Version: XModelVersion(version)}
	if !surf.Version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedXModelSurfVersion, surf.Version)
	}

	surfaceCount, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading surface count", ErrTruncatedXModelSurfData)
	}

	var surfaceErrs []error
	for i := uint16(0); i < surfaceCount; i++ {
		var surface Surface
		var werr error

		switch surf.Version {
		case VersionCoD1:
			surface, werr, err = parseSurfaceV14(r, bones)
		case VersionCoD2:
			surface, werr, err = parseSurfaceV20(r, bones)
		case VersionCoD4:
			surface, werr, err = parseSurfaceV25(r, bones)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing surface %d: %w", i, err)
		}
		if werr != nil {
			// The surface framing survived, only its rigging is unusable.
			surfaceErrs = append(surfaceErrs, fmt.Errorf("surface %d: %w", i, werr))
			continue
		}
		surf.Surfaces = append(surf.Surfaces, surface)
	}

	return surf, errors.Join(surfaceErrs...)
}

// ParseXModelSurfFile parses an xmodelsurf file from disk.
func ParseXModelSurfFile(path string, bones []Bone) (*XModelSurf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading xmodelsurf file: %w", err)
	}
	surf, err := ParseXModelSurf(data, bones)
	if surf != nil {
		surf.Name = filepath.Base(path)
	}
	return surf, err
}

// checkBone validates a bone reference against the supplied skeleton. With
// no skeleton there is nothing to validate.
func checkBone(bone int, bones []Bone) error {
	if bones != nil && bone >= len(bones) {
		return fmt.Errorf("%w: bone %d of %d", ErrCorruptWeight, bone, len(bones))
	}
	return nil
}

// appendTriangle stores a raw (a, b, c) index triple with the source
// winding corrected: the second and third indices are swapped, here and
// nowhere else.
func appendTriangle(triangles []Triangle, a, b, c int) []Triangle {
	return append(triangles, Triangle{a, c, b})
}

// parseSurfaceV14 decodes one CoD1 surface. Triangles are stored as
// packed strips; vertex weights are split across a trailing block.
func parseSurfaceV14(r *Reader, bones []Bone) (Surface, error, error) {
	var surface Surface

	if err := r.Skip(1); err != nil {
		return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
	}
	vertexCount, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: vertex count", ErrTruncatedXModelSurfData)
	}
	triangleCount, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: triangle count", ErrTruncatedXModelSurfData)
	}
	if err := r.Skip(2); err != nil {
		return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
	}
	boneField, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: surface bone", ErrTruncatedXModelSurfData)
	}

	rigged := boneField == riggedSentinel
	defaultBone := 0
	if rigged {
		if err := r.Skip(4); err != nil {
			return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
		}
	} else {
		defaultBone = int(boneField)
	}

	triangles, err := parseTriangleStrips(r, int(triangleCount))
	if err != nil {
		return surface, nil, err
	}
	surface.Triangles = triangles

	var weightErr error
	weightCounts := make([]int, vertexCount)
	surface.Vertices = make([]Vertex, 0, vertexCount)
	for i := uint16(0); i < vertexCount; i++ {
		var v Vertex
		if v.Normal, err = r.Vec3(); err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d normal", ErrTruncatedXModelSurfData, i)
		}
		uv, err := r.Vec2()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d uv", ErrTruncatedXModelSurfData, i)
		}
		v.UV = flipUV(uv)
		v.Color = RGBA{1, 1, 1, 1} // v14 stores no vertex colors

		vertexBone := defaultBone
		if rigged {
			wc, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight count", ErrTruncatedXModelSurfData, i)
			}
			b, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d bone", ErrTruncatedXModelSurfData, i)
			}
			weightCounts[i] = int(wc)
			vertexBone = int(b)
		}

		if v.Position, err = r.Vec3(); err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d position", ErrTruncatedXModelSurfData, i)
		}
		if weightCounts[i] != 0 {
			if err := r.Skip(4); err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d padding", ErrTruncatedXModelSurfData, i)
			}
		}

		if rigged || bones != nil {
			if err := checkBone(vertexBone, bones); err != nil && weightErr == nil {
				weightErr = err
			}
			v.Weights = []Weight{{Bone: vertexBone, Influence: 1}}
		}
		surface.Vertices = append(surface.Vertices, v)
	}

	// Extra weights trail the vertex block, grouped per vertex.
	for i := range surface.Vertices {
		for w := 0; w < weightCounts[i]; w++ {
			bone, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight bone", ErrTruncatedXModelSurfData, i)
			}
			if err := r.Skip(12); err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight padding", ErrTruncatedXModelSurfData, i)
			}
			influence, err := r.Float32()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight influence", ErrTruncatedXModelSurfData, i)
			}
			if err := checkBone(int(bone), bones); err != nil && weightErr == nil {
				weightErr = err
			}

			influence /= riggedSentinel
			surface.Vertices[i].Weights[0].Influence -= influence
			surface.Vertices[i].Weights = append(surface.Vertices[i].Weights, Weight{Bone: int(bone), Influence: influence})
		}
	}

	return surface, weightErr, nil
}

// parseTriangleStrips expands the v14 packed strips into triangles,
// dropping degenerate triples, until triangleCount triangles are decoded.
func parseTriangleStrips(r *Reader, triangleCount int) ([]Triangle, error) {
	var triangles []Triangle
	for len(triangles) < triangleCount {
		indexCount, err := r.Uint8()
		if err != nil {
			return nil, fmt.Errorf("%w: strip length", ErrTruncatedXModelSurfData)
		}

		idx1, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("%w: strip indices", ErrTruncatedXModelSurfData)
		}
		idx2, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("%w: strip indices", ErrTruncatedXModelSurfData)
		}
		idx3, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("%w: strip indices", ErrTruncatedXModelSurfData)
		}

		if idx1 != idx2 && idx1 != idx3 && idx2 != idx3 {
			triangles = appendTriangle(triangles, int(idx1), int(idx2), int(idx3))
		}

		for i := 3; i < int(indexCount); {
			idx4 := idx3
			idx5, err := r.Uint16()
			if err != nil {
				return nil, fmt.Errorf("%w: strip indices", ErrTruncatedXModelSurfData)
			}
			if idx4 != idx2 && idx4 != idx5 && idx2 != idx5 {
				triangles = appendTriangle(triangles, int(idx4), int(idx2), int(idx5))
			}

			v := i + 1
			if v >= int(indexCount) {
				break
			}

			idx2 = idx5
			idx3, err = r.Uint16()
			if err != nil {
				return nil, fmt.Errorf("%w: strip indices", ErrTruncatedXModelSurfData)
			}
			if idx4 != idx2 && idx4 != idx3 && idx2 != idx3 {
				triangles = appendTriangle(triangles, int(idx4), int(idx2), int(idx3))
			}

			i = v + 1
		}
	}
	return triangles, nil
}

// parseSurfaceV20 decodes one CoD2 surface.
func parseSurfaceV20(r *Reader, bones []Bone) (Surface, error, error) {
	var surface Surface

	if err := r.Skip(1); err != nil {
		return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
	}
	vertexCount, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: vertex count", ErrTruncatedXModelSurfData)
	}
	triangleCount, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: triangle count", ErrTruncatedXModelSurfData)
	}
	boneField, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: surface bone", ErrTruncatedXModelSurfData)
	}

	rigged := boneField == riggedSentinel
	defaultBone := 0
	if rigged {
		if err := r.Skip(2); err != nil {
			return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
		}
	} else {
		defaultBone = int(boneField)
	}

	var weightErr error
	surface.Vertices = make([]Vertex, 0, vertexCount)
	for i := uint16(0); i < vertexCount; i++ {
		v, werr, err := parseVertexV20(r, bones, rigged, defaultBone)
		if err != nil {
			return surface, nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		if werr != nil && weightErr == nil {
			weightErr = werr
		}
		surface.Vertices = append(surface.Vertices, v)
	}

	for i := uint16(0); i < triangleCount; i++ {
		a, err := r.Uint16()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: triangle %d", ErrTruncatedXModelSurfData, i)
		}
		b, err := r.Uint16()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: triangle %d", ErrTruncatedXModelSurfData, i)
		}
		c, err := r.Uint16()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: triangle %d", ErrTruncatedXModelSurfData, i)
		}
		surface.Triangles = appendTriangle(surface.Triangles, int(a), int(b), int(c))
	}

	return surface, weightErr, nil
}

// parseVertexV20 reads one CoD2 vertex with its inline weight list.
func parseVertexV20(r *Reader, bones []Bone, rigged bool, defaultBone int) (Vertex, error, error) {
	var v Vertex
	var err error

	if v.Normal, err = r.Vec3(); err != nil {
		return v, nil, fmt.Errorf("%w: normal", ErrTruncatedXModelSurfData)
	}
	if v.Color, err = readColor(r); err != nil {
		return v, nil, err
	}
	uv, err := r.Vec2()
	if err != nil {
		return v, nil, fmt.Errorf("%w: uv", ErrTruncatedXModelSurfData)
	}
	v.UV = flipUV(uv)

	if err := r.Skip(24); err != nil {
		return v, nil, fmt.Errorf("%w: vertex padding", ErrTruncatedXModelSurfData)
	}

	weightCount := 0
	vertexBone := defaultBone
	if rigged {
		wc, err := r.Uint8()
		if err != nil {
			return v, nil, fmt.Errorf("%w: weight count", ErrTruncatedXModelSurfData)
		}
		b, err := r.Uint16()
		if err != nil {
			return v, nil, fmt.Errorf("%w: vertex bone", ErrTruncatedXModelSurfData)
		}
		weightCount = int(wc)
		vertexBone = int(b)
	}

	if v.Position, err = r.Vec3(); err != nil {
		return v, nil, fmt.Errorf("%w: position", ErrTruncatedXModelSurfData)
	}

	var weightErr error
	if rigged || bones != nil {
		weightErr = checkBone(vertexBone, bones)
		v.Weights = []Weight{{Bone: vertexBone, Influence: 1}}
	}

	if weightCount > 0 {
		if err := r.Skip(1); err != nil {
			return v, nil, fmt.Errorf("%w: weight padding", ErrTruncatedXModelSurfData)
		}
		for w := 0; w < weightCount; w++ {
			bone, err := r.Uint16()
			if err != nil {
				return v, nil, fmt.Errorf("%w: weight bone", ErrTruncatedXModelSurfData)
			}
			if err := r.Skip(12); err != nil {
				return v, nil, fmt.Errorf("%w: weight padding", ErrTruncatedXModelSurfData)
			}
			packed, err := r.Uint16()
			if err != nil {
				return v, nil, fmt.Errorf("%w: weight influence", ErrTruncatedXModelSurfData)
			}
			if err := checkBone(int(bone), bones); err != nil && weightErr == nil {
				weightErr = err
			}

			influence := float32(packed) / riggedSentinel
			v.Weights[0].Influence -= influence
			v.Weights = append(v.Weights, Weight{Bone: int(bone), Influence: influence})
		}
	}

	return v, weightErr, nil
}

// parseSurfaceV25 decodes one CoD4 surface. Skinning is signalled by a
// vertex-count mismatch in the header rather than a sentinel bone.
func parseSurfaceV25(r *Reader, bones []Bone) (Surface, error, error) {
	var surface Surface

	if err := r.Skip(3); err != nil {
		return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
	}
	vertexCount, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: vertex count", ErrTruncatedXModelSurfData)
	}
	triangleCount, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: triangle count", ErrTruncatedXModelSurfData)
	}
	vertexCount2, err := r.Uint16()
	if err != nil {
		return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
	}

	rigged := vertexCount != vertexCount2
	if rigged {
		for {
			p, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
			}
			if p == 0 {
				break
			}
		}
		if err := r.Skip(2); err != nil {
			return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
		}
	} else {
		if err := r.Skip(4); err != nil {
			return surface, nil, fmt.Errorf("%w: surface header", ErrTruncatedXModelSurfData)
		}
	}

	var weightErr error
	surface.Vertices = make([]Vertex, 0, vertexCount)
	for i := uint16(0); i < vertexCount; i++ {
		var v Vertex
		if v.Normal, err = r.Vec3(); err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d normal", ErrTruncatedXModelSurfData, i)
		}
		if v.Color, err = readColor(r); err != nil {
			return surface, nil, err
		}
		uv, err := r.Vec2()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d uv", ErrTruncatedXModelSurfData, i)
		}
		v.UV = flipUV(uv)

		if err := r.Skip(24); err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d padding", ErrTruncatedXModelSurfData, i)
		}

		weightCount := 0
		vertexBone := 0
		if rigged {
			wc, err := r.Uint8()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight count", ErrTruncatedXModelSurfData, i)
			}
			b, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d bone", ErrTruncatedXModelSurfData, i)
			}
			weightCount = int(wc)
			vertexBone = int(b)
		}

		if v.Position, err = r.Vec3(); err != nil {
			return surface, nil, fmt.Errorf("%w: vertex %d position", ErrTruncatedXModelSurfData, i)
		}

		if rigged || bones != nil {
			if err := checkBone(vertexBone, bones); err != nil && weightErr == nil {
				weightErr = err
			}
			v.Weights = []Weight{{Bone: vertexBone, Influence: 1}}
		}

		for w := 0; w < weightCount; w++ {
			bone, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight bone", ErrTruncatedXModelSurfData, i)
			}
			packed, err := r.Uint16()
			if err != nil {
				return surface, nil, fmt.Errorf("%w: vertex %d weight influence", ErrTruncatedXModelSurfData, i)
			}
			if err := checkBone(int(bone), bones); err != nil && weightErr == nil {
				weightErr = err
			}

			influence := float32(packed) / riggedSentinel
			v.Weights[0].Influence -= influence
			v.Weights = append(v.Weights, Weight{Bone: int(bone), Influence: influence})
		}

		surface.Vertices = append(surface.Vertices, v)
	}

	for i := uint16(0); i < triangleCount; i++ {
		a, err := r.Uint16()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: triangle %d", ErrTruncatedXModelSurfData, i)
		}
		b, err := r.Uint16()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: triangle %d", ErrTruncatedXModelSurfData, i)
		}
		c, err := r.Uint16()
		if err != nil {
			return surface, nil, fmt.Errorf("%w: triangle %d", ErrTruncatedXModelSurfData, i)
		}
		surface.Triangles = appendTriangle(surface.Triangles, int(a), int(b), int(c))
	}

	return surface, weightErr, nil
}

// readColor reads a 4-byte vertex color and normalizes it to 0..1.
func readColor(r *Reader) (RGBA, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return RGBA{}, err
	}
	return RGBA{
		R: float32(b[0]) / 255,
		G: float32(b[1]) / 255,
		B: float32(b[2]) / 255,
		A: float32(b[3]) / 255,
	}, nil
}

// flipUV converts the source V direction to the target convention.
func flipUV(uv mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{uv[0], 1 - uv[1]}
}
