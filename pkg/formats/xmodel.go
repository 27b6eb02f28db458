// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// XModel format errors.
var (
	ErrUnsupportedXModelVersion = errors.New("unsupported xmodel version")
	ErrTruncatedXModelData      = errors.New("truncated xmodel data")
)

// XModelLod is one level-of-detail entry. Name is the xmodelpart/xmodelsurf
// pair the entry renders with; Materials lists material names whose
// resolution convention depends on the model version.
type XModelLod struct {
	Name      string
	Distance  float32
	Materials []string
}

// XModel represents a parsed xmodel (model index) file. It only names the
// skeleton, surface and material assets of each LOD; loading them is the
// caller's responsibility.
type XModel struct {
	Name    string
	Version XModelVersion
	Lods    []XModelLod
}

// lodSlots returns the fixed LOD slot count and the header byte count
// preceding the slots for a version.
func lodSlots(v XModelVersion) (slots, headerPad int) {
	switch v {
	case VersionCoD1:
		return 3, 24
	case VersionCoD2:
		return 4, 25
	default: // VersionCoD4
		return 4, 26
	}
}

// ParseXModel parses xmodel data from a byte slice.
func ParseXModel(data []byte) (*XModel, error) {
	r := NewReader(data)

	version, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedXModelData)
	}
	model := &XModel{Version: XModelVersion(version)}
	if !model.Version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedXModelVersion, model.Version)
	}

	slots, headerPad := lodSlots(model.Version)
	if err := r.Skip(headerPad); err != nil {
		return nil, fmt.Errorf("%w: skipping header", ErrTruncatedXModelData)
	}

	// Fixed LOD slot table; an empty name marks an unused slot.
	for i := 0; i < slots; i++ {
		distance, err := r.Float32()
		if err != nil {
			return nil, fmt.Errorf("%w: reading lod %d distance", ErrTruncatedXModelData, i)
		}
		name, err := r.CString()
		if err != nil {
			return nil, fmt.Errorf("reading lod %d name: %w", i, err)
		}
		if name != "" {
			model.Lods = append(model.Lods, XModelLod{Name: name, Distance: distance})
		}
	}

	if err := r.Skip(4); err != nil {
		return nil, fmt.Errorf("%w: skipping lod table padding", ErrTruncatedXModelData)
	}

	// Collision data blocks, not used by the importer.
	blockCount, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: reading block count", ErrTruncatedXModelData)
	}
	for i := uint32(0); i < blockCount; i++ {
		subCount, err := r.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: reading block %d size", ErrTruncatedXModelData, i)
		}
		if err := r.Skip(int(subCount)*48 + 36); err != nil {
			return nil, fmt.Errorf("%w: skipping block %d", ErrTruncatedXModelData, i)
		}
	}

	for k := range model.Lods {
		materialCount, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("%w: reading lod %d material count", ErrTruncatedXModelData, k)
		}
		for i := uint16(0); i < materialCount; i++ {
			material, err := r.CString()
			if err != nil {
				return nil, fmt.Errorf("reading lod %d material %d: %w", k, i, err)
			}
			model.Lods[k].Materials = append(model.Lods[k].Materials, material)
		}
	}

	return model, nil
}

// ParseXModelFile parses an xmodel file from disk.
func ParseXModelFile(path string) (*XModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading xmodel file: %w", err)
	}
	model, err := ParseXModel(data)
	if err != nil {
		return nil, err
	}
	model.Name = filepath.Base(path)
	return model, nil
}

// MaterialName maps a raw LOD material entry to the logical material name.
// v14 entries are texture file names (the extension is dropped); later
// versions store the material name directly.
func (m *XModel) MaterialName(raw string) string {
	if m.Version == VersionCoD1 {
		return strings.TrimSuffix(raw, filepath.Ext(raw))
	}
	return raw
}
