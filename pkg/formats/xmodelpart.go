// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
)

// XModelPart format errors.
var (
	ErrUnsupportedXModelPartVersion = errors.New("unsupported xmodelpart version")
	ErrTruncatedXModelPartData      = errors.New("truncated xmodelpart data")
	ErrCorruptSkeleton              = errors.New("corrupt bone hierarchy")
)

// rotationDivisor converts the packed int16 quaternion components.
const rotationDivisor = 32768.0

// Bone is one joint of a skeleton. Parent is -1 for root bones and
// otherwise an earlier index in the same bone list; bones are stored
// parent-before-child.
type Bone struct {
	Name     string
	Parent   int
	Position mgl32.Vec3 // relative to the parent bone
	Rotation mgl32.Quat // relative to the parent bone
}

// BoneTransform is a bone pose in model space.
type BoneTransform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// XModelPart represents a parsed xmodelpart (skeleton) file.
type XModelPart struct {
	Name    string
	Version XModelVersion
	Bones   []Bone
}

// ParseXModelPart parses xmodelpart data from a byte slice.
func ParseXModelPart(data []byte) (*XModelPart, error) {
	r := NewReader(data)

	version, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedXModelPartData)
	}
	part := &XModelPart{Version: XModelVersion(version)}
	if !part.Version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedXModelPartVersion, part.Version)
	}

	boneCount, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading bone count", ErrTruncatedXModelPartData)
	}
	rootCount, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading root bone count", ErrTruncatedXModelPartData)
	}

	part.Bones = make([]Bone, 0, int(boneCount)+int(rootCount))

	// Root bones carry no stored transform.
	for i := uint16(0); i < rootCount; i++ {
		part.Bones = append(part.Bones, Bone{Parent: -1, Rotation: mgl32.QuatIdent()})
	}

	for i := uint16(0); i < boneCount; i++ {
		bone, err := parseBone(r)
		if err != nil {
			return nil, fmt.Errorf("parsing bone %d: %w", i, err)
		}

		// Bones must reference an already-read parent; a self or forward
		// reference makes the whole hierarchy unusable.
		index := len(part.Bones)
		if bone.Parent >= index {
			return nil, fmt.Errorf("%w: bone %d references parent %d", ErrCorruptSkeleton, index, bone.Parent)
		}
		part.Bones = append(part.Bones, bone)
	}

	for i := range part.Bones {
		name, err := r.CString()
		if err != nil {
			return nil, fmt.Errorf("reading name of bone %d: %w", i, err)
		}
		part.Bones[i].Name = name

		// v14 stores 24 bytes of per-bone data after each name that the
		// importer never uses.
		if part.Version == VersionCoD1 {
			if err := r.Skip(24); err != nil {
				return nil, fmt.Errorf("%w: skipping bone %d padding", ErrTruncatedXModelPartData, i)
			}
		}
	}

	return part, nil
}

// parseBone reads one non-root bone record: parent index, position and a
// packed quaternion with the scalar part reconstructed.
func parseBone(r *Reader) (Bone, error) {
	parent, err := r.Uint8()
	if err != nil {
		return Bone{}, fmt.Errorf("%w: reading parent", ErrTruncatedXModelPartData)
	}
	position, err := r.Vec3()
	if err != nil {
		return Bone{}, fmt.Errorf("%w: reading position", ErrTruncatedXModelPartData)
	}

	var q [3]float32
	for i := range q {
		packed, err := r.Int16()
		if err != nil {
			return Bone{}, fmt.Errorf("%w: reading rotation", ErrTruncatedXModelPartData)
		}
		q[i] = float32(packed) / rotationDivisor
	}

	// The packed components can overshoot unit length by a rounding step.
	w := 1 - float64(q[0])*float64(q[0]) - float64(q[1])*float64(q[1]) - float64(q[2])*float64(q[2])
	if w < 0 {
		w = 0
	}

	return Bone{
		Parent:   int(parent),
		Position: position,
		Rotation: mgl32.Quat{W: float32(math.Sqrt(w)), V: mgl32.Vec3{q[0], q[1], q[2]}},
	}, nil
}

// ParseXModelPartFile parses an xmodelpart file from disk.
func ParseXModelPartFile(path string) (*XModelPart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading xmodelpart file: %w", err)
	}
	part, err := ParseXModelPart(data)
	if err != nil {
		return nil, err
	}
	part.Name = filepath.Base(path)
	return part, nil
}

// HasSkeleton returns false for the single-root-bone layout that rigid
// models use as a "no skeleton" marker.
func (p *XModelPart) HasSkeleton() bool {
	return len(p.Bones) > 1
}

// WorldTransforms composes the local bone transforms parent-to-child and
// returns the model-space pose for each bone, in bone order.
func (p *XModelPart) WorldTransforms() []BoneTransform {
	world := make([]BoneTransform, len(p.Bones))
	for i, bone := range p.Bones {
		if bone.Parent < 0 {
			world[i] = BoneTransform{Position: bone.Position, Rotation: bone.Rotation}
			continue
		}
		parent := world[bone.Parent]
		world[i] = BoneTransform{
			Position: parent.Position.Add(parent.Rotation.Rotate(bone.Position)),
			Rotation: parent.Rotation.Mul(bone.Rotation),
		}
	}
	return world
}
