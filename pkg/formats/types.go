// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// XModelVersion identifies the on-disk layout generation shared by the
// xmodel, xmodelpart, xmodelsurf and material files of one game release.
type XModelVersion uint16

const (
	VersionCoD1 XModelVersion = 14 // CoD1 & CoD:UO
	VersionCoD2 XModelVersion = 20 // CoD2
	VersionCoD4 XModelVersion = 25 // CoD4
)

// Supported returns true for versions this package can decode.
func (v XModelVersion) Supported() bool {
	switch v {
	case VersionCoD1, VersionCoD2, VersionCoD4:
		return true
	}
	return false
}

// String returns a human-readable version name.
func (v XModelVersion) String() string {
	switch v {
	case VersionCoD1:
		return "v14 (CoD1)"
	case VersionCoD2:
		return "v20 (CoD2)"
	case VersionCoD4:
		return "v25 (CoD4)"
	default:
		return fmt.Sprintf("v%d (unknown)", uint16(v))
	}
}

// RGBA is a vertex color with components normalized to 0..1.
type RGBA struct {
	R, G, B, A float32
}

// Weight binds a vertex to one bone of the owning skeleton.
type Weight struct {
	Bone      int     // index into the skeleton's bone list
	Influence float32 // best-effort source data, not renormalized
}

// Vertex is one mesh or map vertex. Weights is empty for unskinned surfaces.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Color    RGBA
	Weights  []Weight
}

// Triangle indexes three vertices of the owning surface. The stored order
// already has the source winding corrected for a counter-clockwise target
// convention: relative to the file, the second and third indices are
// swapped, exactly once, during decoding.
type Triangle [3]int

// Surface is a run of triangles over one vertex buffer. Material is the
// back-reference into the owning map's material table and is empty for
// model surfaces, whose materials live on the XModel LOD instead.
type Surface struct {
	Material  string
	Vertices  []Vertex
	Triangles []Triangle
}

// TextureImage is a decoded texture: a row-major, top-to-bottom RGBA8
// buffer. len(Pixels) == Width*Height*4.
type TextureImage struct {
	Width  int
	Height int
	Pixels []byte
}
