// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Material format errors.
var (
	ErrUnsupportedMaterialVersion = errors.New("unsupported material version")
	ErrTruncatedMaterialData      = errors.New("truncated material data")
)

// TextureRole classifies how a texture binding is used by the material.
type TextureRole int

const (
	RoleUnknown TextureRole = iota
	RoleColorMap
	RoleSpecularMap
	RoleNormalMap
)

// String returns a human-readable role name.
func (t TextureRole) String() string {
	switch t {
	case RoleColorMap:
		return "colorMap"
	case RoleSpecularMap:
		return "specularMap"
	case RoleNormalMap:
		return "normalMap"
	default:
		return "unknown"
	}
}

// Role tag tables per material generation. Tags missing from the table
// decode as RoleUnknown rather than failing the material.
var materialRoleTags = map[XModelVersion]map[string]TextureRole{
	VersionCoD2: {
		"colorMap":    RoleColorMap,
		"specularMap": RoleSpecularMap,
		"normalMap":   RoleNormalMap,
	},
	VersionCoD4: {
		"colorMap":    RoleColorMap,
		"specularMap": RoleSpecularMap,
		"normalMap":   RoleNormalMap,
	},
}

// MaterialTexture is one texture binding of a material.
type MaterialTexture struct {
	Name  string
	Role  TextureRole
	Tag   string // raw role tag as stored in the file
	Flags uint32
}

// Material represents a parsed material descriptor.
type Material struct {
	Name     string
	Techset  string
	Textures []MaterialTexture
}

// ParseMaterial parses material data from a byte slice. The strings of the
// descriptor are stored behind an offset table, so parsing never opens any
// other resource but does read at absolute offsets within data.
func ParseMaterial(version XModelVersion, data []byte) (*Material, error) {
	tags, ok := materialRoleTags[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMaterialVersion, version)
	}

	r := NewReader(data)

	nameOffset, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: reading name offset", ErrTruncatedMaterialData)
	}
	if err := r.Skip(48); err != nil {
		return nil, fmt.Errorf("%w: skipping header", ErrTruncatedMaterialData)
	}
	textureCount, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: reading texture count", ErrTruncatedMaterialData)
	}
	if err := r.Skip(2); err != nil {
		return nil, fmt.Errorf("%w: skipping header", ErrTruncatedMaterialData)
	}
	techsetOffset, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: reading techset offset", ErrTruncatedMaterialData)
	}
	texturesOffset, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: reading textures offset", ErrTruncatedMaterialData)
	}

	material := &Material{}
	if material.Name, err = cstringAt(data, nameOffset); err != nil {
		return nil, fmt.Errorf("reading material name: %w", err)
	}
	if material.Techset, err = cstringAt(data, techsetOffset); err != nil {
		return nil, fmt.Errorf("reading techset: %w", err)
	}

	if int64(texturesOffset) > int64(len(data)) {
		return nil, fmt.Errorf("%w: textures offset %d beyond %d bytes", ErrTruncatedMaterialData, texturesOffset, len(data))
	}
	tr := NewReader(data[texturesOffset:])

	for i := uint16(0); i < textureCount; i++ {
		tagOffset, err := tr.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: reading texture %d tag offset", ErrTruncatedMaterialData, i)
		}
		flags, err := tr.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: reading texture %d flags", ErrTruncatedMaterialData, i)
		}
		nameOffset, err := tr.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: reading texture %d name offset", ErrTruncatedMaterialData, i)
		}

		tag, err := cstringAt(data, tagOffset)
		if err != nil {
			return nil, fmt.Errorf("reading texture %d tag: %w", i, err)
		}
		name, err := cstringAt(data, nameOffset)
		if err != nil {
			return nil, fmt.Errorf("reading texture %d name: %w", i, err)
		}

		material.Textures = append(material.Textures, MaterialTexture{
			Name:  name,
			Role:  tags[tag], // unknown tags stay RoleUnknown
			Tag:   tag,
			Flags: flags,
		})
	}

	return material, nil
}

// ParseMaterialFile parses a material file from disk.
func ParseMaterialFile(version XModelVersion, path string) (*Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading material file: %w", err)
	}
	material, err := ParseMaterial(version, data)
	if err != nil {
		return nil, err
	}
	if material.Name == "" {
		material.Name = filepath.Base(path)
	}
	return material, nil
}

// TextureByRole returns the first texture bound with the given role, or nil.
func (m *Material) TextureByRole(role TextureRole) *MaterialTexture {
	for i := range m.Textures {
		if m.Textures[i].Role == role {
			return &m.Textures[i]
		}
	}
	return nil
}
