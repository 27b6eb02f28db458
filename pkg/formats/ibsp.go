// Package formats provides parsers for Call of Duty asset file formats.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// IBSP format errors.
var (
	ErrInvalidIBSPMagic       = errors.New("invalid IBSP magic: expected 'IBSP'")
	ErrUnsupportedIBSPVersion = errors.New("unsupported IBSP version")
	ErrTruncatedIBSPData      = errors.New("truncated IBSP data")
)

// IBSPVersion selects the lump layout of a compiled map.
type IBSPVersion int32

const (
	IBSPVersionCoD1 IBSPVersion = 59 // CoD1 & CoD:UO
	IBSPVersionCoD2 IBSPVersion = 4  // CoD2
)

// String returns a human-readable version name.
func (v IBSPVersion) String() string {
	switch v {
	case IBSPVersionCoD1:
		return "v59 (CoD1)"
	case IBSPVersionCoD2:
		return "v4 (CoD2)"
	default:
		return fmt.Sprintf("v%d (unknown)", int32(v))
	}
}

// lumpCount is fixed for every supported version.
const lumpCount = 39

// Per-version lump directory indices.
const (
	lumpV59Materials     = 0
	lumpV59TriangleSoups = 6
	lumpV59Vertices      = 7
	lumpV59Triangles     = 8
	lumpV59Entities      = 29

	lumpV4Materials     = 0
	lumpV4TriangleSoups = 7
	lumpV4Vertices      = 8
	lumpV4Triangles     = 9
	lumpV4Entities      = 37
)

// IBSPMaterial is one entry of the map's material name table. v59 names
// carry no file extension; resolving the texture file is the caller's job.
type IBSPMaterial struct {
	Name  string
	Flags uint64
}

// IBSPEntity is a model placed in the map. Angles keeps the three raw
// degree components in source order; mapping them onto a rotation order is
// left to the caller.
type IBSPEntity struct {
	Name   string
	Origin mgl32.Vec3
	Angles mgl32.Vec3
	Scale  mgl32.Vec3
}

// IBSP represents a parsed compiled map.
type IBSP struct {
	Name      string
	Version   IBSPVersion
	Materials []IBSPMaterial
	Surfaces  []Surface
	Entities  []IBSPEntity
}

// lump is one directory entry of the IBSP header.
type lump struct {
	Length uint32
	Offset uint32
}

// slice returns the lump's bytes out of the file buffer.
func (l lump) slice(data []byte) ([]byte, error) {
	end := int64(l.Offset) + int64(l.Length)
	if end > int64(len(data)) {
		return nil, fmt.Errorf("%w: lump [%d:%d] beyond %d bytes", ErrTruncatedIBSPData, l.Offset, end, len(data))
	}
	return data[l.Offset:end], nil
}

// triangleSoup groups a contiguous vertex/triangle range under one material.
type triangleSoup struct {
	Material        uint16
	DrawOrder       uint16
	VerticesOffset  uint32
	VerticesLength  uint16
	TrianglesLength uint16
	TrianglesOffset uint32
}

// ParseIBSP parses IBSP map data from a byte slice.
func ParseIBSP(data []byte) (*IBSP, error) {
	r := NewReader(data)

	magic, err := r.FixedString(4)
	if err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedIBSPData)
	}
	if magic != "IBSP" {
		return nil, ErrInvalidIBSPMagic
	}

	version, err := r.Int32()
	if err != nil {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedIBSPData)
	}
	bsp := &IBSP{Version: IBSPVersion(version)}
	if bsp.Version != IBSPVersionCoD1 && bsp.Version != IBSPVersionCoD2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIBSPVersion, bsp.Version)
	}

	lumps := make([]lump, lumpCount)
	for i := range lumps {
		if lumps[i].Length, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("%w: reading lump directory", ErrTruncatedIBSPData)
		}
		if lumps[i].Offset, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("%w: reading lump directory", ErrTruncatedIBSPData)
		}
	}

	materialsLump, soupsLump, verticesLump, trianglesLump, entitiesLump :=
		lumps[lumpV59Materials], lumps[lumpV59TriangleSoups], lumps[lumpV59Vertices], lumps[lumpV59Triangles], lumps[lumpV59Entities]
	if bsp.Version == IBSPVersionCoD2 {
		materialsLump, soupsLump, verticesLump, trianglesLump, entitiesLump =
			lumps[lumpV4Materials], lumps[lumpV4TriangleSoups], lumps[lumpV4Vertices], lumps[lumpV4Triangles], lumps[lumpV4Entities]
	}

	if bsp.Materials, err = parseIBSPMaterials(data, materialsLump); err != nil {
		return nil, err
	}
	soups, err := parseTriangleSoups(data, soupsLump)
	if err != nil {
		return nil, err
	}
	vertices, err := parseIBSPVertices(data, verticesLump, bsp.Version)
	if err != nil {
		return nil, err
	}
	triangles, err := parseIBSPTriangles(data, trianglesLump)
	if err != nil {
		return nil, err
	}
	if bsp.Entities, err = parseIBSPEntities(data, entitiesLump); err != nil {
		return nil, err
	}

	if bsp.Surfaces, err = buildSurfaces(bsp.Materials, soups, vertices, triangles); err != nil {
		return nil, err
	}

	return bsp, nil
}

// ParseIBSPFile parses an IBSP map file from disk.
func ParseIBSPFile(path string) (*IBSP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading IBSP file: %w", err)
	}
	bsp, err := ParseIBSP(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	bsp.Name = strings.TrimSuffix(base, filepath.Ext(base))
	return bsp, nil
}

// parseIBSPMaterials decodes the material name table.
func parseIBSPMaterials(data []byte, l lump) ([]IBSPMaterial, error) {
	buf, err := l.slice(data)
	if err != nil {
		return nil, fmt.Errorf("materials: %w", err)
	}

	const recordSize = 64 + 8
	r := NewReader(buf)
	materials := make([]IBSPMaterial, 0, len(buf)/recordSize)
	for r.Remaining() >= recordSize {
		name, err := r.FixedString(64)
		if err != nil {
			return nil, fmt.Errorf("%w: reading material name", ErrTruncatedIBSPData)
		}
		flags, err := r.Uint64()
		if err != nil {
			return nil, fmt.Errorf("%w: reading material flags", ErrTruncatedIBSPData)
		}
		materials = append(materials, IBSPMaterial{Name: name, Flags: flags})
	}
	return materials, nil
}

// parseTriangleSoups decodes the trianglesoup directory.
func parseTriangleSoups(data []byte, l lump) ([]triangleSoup, error) {
	buf, err := l.slice(data)
	if err != nil {
		return nil, fmt.Errorf("trianglesoups: %w", err)
	}

	const recordSize = 16
	r := NewReader(buf)
	soups := make([]triangleSoup, 0, len(buf)/recordSize)
	for r.Remaining() >= recordSize {
		var s triangleSoup
		s.Material, _ = r.Uint16()
		s.DrawOrder, _ = r.Uint16()
		s.VerticesOffset, _ = r.Uint32()
		s.VerticesLength, _ = r.Uint16()
		s.TrianglesLength, _ = r.Uint16()
		if s.TrianglesOffset, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("%w: reading trianglesoup", ErrTruncatedIBSPData)
		}
		soups = append(soups, s)
	}
	return soups, nil
}

// parseIBSPVertices decodes the vertex lump with the per-version field order.
func parseIBSPVertices(data []byte, l lump, version IBSPVersion) ([]Vertex, error) {
	buf, err := l.slice(data)
	if err != nil {
		return nil, fmt.Errorf("vertices: %w", err)
	}

	recordSize := 44 // v59: pos 3f, uv 2f, pad 8, normal 3f, color 4B
	if version == IBSPVersionCoD2 {
		recordSize = 68 // v4: pos 3f, normal 3f, color 4B, uv 2f, pad 32
	}

	r := NewReader(buf)
	vertices := make([]Vertex, 0, len(buf)/recordSize)
	for r.Remaining() >= recordSize {
		var v Vertex
		var uv mgl32.Vec2
		switch version {
		case IBSPVersionCoD1:
			v.Position, _ = r.Vec3()
			uv, _ = r.Vec2()
			_ = r.Skip(8)
			v.Normal, _ = r.Vec3()
			v.Color, err = readColor(r)
		default:
			v.Position, _ = r.Vec3()
			v.Normal, _ = r.Vec3()
			v.Color, _ = readColor(r)
			uv, _ = r.Vec2()
			err = r.Skip(32)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading vertex", ErrTruncatedIBSPData)
		}
		v.UV = flipUV(uv)
		vertices = append(vertices, v)
	}
	return vertices, nil
}

// parseIBSPTriangles decodes the raw index triples, storage order preserved.
func parseIBSPTriangles(data []byte, l lump) ([][3]uint16, error) {
	buf, err := l.slice(data)
	if err != nil {
		return nil, fmt.Errorf("triangles: %w", err)
	}

	r := NewReader(buf)
	triangles := make([][3]uint16, 0, len(buf)/6)
	for r.Remaining() >= 6 {
		var t [3]uint16
		for i := range t {
			if t[i], err = r.Uint16(); err != nil {
				return nil, fmt.Errorf("%w: reading triangle", ErrTruncatedIBSPData)
			}
		}
		triangles = append(triangles, t)
	}
	return triangles, nil
}

// buildSurfaces assembles per-soup surfaces with locally re-indexed
// vertices. The winding swap happens here, once per triangle.
func buildSurfaces(materials []IBSPMaterial, soups []triangleSoup, vertices []Vertex, triangles [][3]uint16) ([]Surface, error) {
	surfaces := make([]Surface, 0, len(soups))
	for si, soup := range soups {
		if int(soup.Material) >= len(materials) {
			return nil, fmt.Errorf("%w: trianglesoup %d references material %d of %d", ErrTruncatedIBSPData, si, soup.Material, len(materials))
		}
		surface := Surface{Material: materials[soup.Material].Name}

		remap := make(map[int]int)
		local := func(global int) (int, error) {
			if global >= len(vertices) {
				return 0, fmt.Errorf("%w: trianglesoup %d references vertex %d of %d", ErrTruncatedIBSPData, si, global, len(vertices))
			}
			if idx, ok := remap[global]; ok {
				return idx, nil
			}
			idx := len(surface.Vertices)
			surface.Vertices = append(surface.Vertices, vertices[global])
			remap[global] = idx
			return idx, nil
		}

		triangleCount := int(soup.TrianglesLength) / 3
		for i := 0; i < triangleCount; i++ {
			id := int(soup.TrianglesOffset)/3 + i
			if id >= len(triangles) {
				return nil, fmt.Errorf("%w: trianglesoup %d references triangle %d of %d", ErrTruncatedIBSPData, si, id, len(triangles))
			}
			t := triangles[id]

			// Swap the second and third stored indices; local indices are
			// assigned in emitted order.
			a, err := local(int(soup.VerticesOffset) + int(t[0]))
			if err != nil {
				return nil, err
			}
			c, err := local(int(soup.VerticesOffset) + int(t[2]))
			if err != nil {
				return nil, err
			}
			b, err := local(int(soup.VerticesOffset) + int(t[1]))
			if err != nil {
				return nil, err
			}
			surface.Triangles = append(surface.Triangles, Triangle{a, c, b})
		}

		surfaces = append(surfaces, surface)
	}
	return surfaces, nil
}

// parseIBSPEntities decodes the textual entity lump: a sequence of
// `{ "key" "value" ... }` blocks. Only xmodel placements are kept.
func parseIBSPEntities(data []byte, l lump) ([]IBSPEntity, error) {
	buf, err := l.slice(data)
	if err != nil {
		return nil, fmt.Errorf("entities: %w", err)
	}
	text := strings.TrimRight(string(buf), "\x00")

	var entities []IBSPEntity
	for _, block := range splitEntityBlocks(text) {
		keys := parseEntityBlock(block)

		model, ok := keys["model"]
		if !ok {
			continue
		}
		// Placements other than static models (brushes, spawners, lights)
		// also appear in the lump.
		name, ok := strings.CutPrefix(strings.ReplaceAll(model, "\\", "/"), "xmodel/")
		if !ok {
			continue
		}

		entities = append(entities, IBSPEntity{
			Name:   name,
			Origin: parseEntityVec(keys["origin"], 0),
			Angles: parseEntityVec(keys["angles"], 0),
			Scale:  parseEntityVec(keys["modelscale"], 1),
		})
	}
	return entities, nil
}

// splitEntityBlocks returns the inside of each top-level { } pair.
func splitEntityBlocks(text string) []string {
	var blocks []string
	depth, start := 0, 0
	for i, c := range text {
		switch c {
		case '{':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case '}':
			depth--
			if depth == 0 {
				blocks = append(blocks, text[start:i])
			}
		}
	}
	return blocks
}

// parseEntityBlock collects the quoted key/value pairs of one block.
func parseEntityBlock(block string) map[string]string {
	keys := make(map[string]string)
	var fields []string
	for {
		open := strings.IndexByte(block, '"')
		if open < 0 {
			break
		}
		block = block[open+1:]
		close := strings.IndexByte(block, '"')
		if close < 0 {
			break
		}
		fields = append(fields, block[:close])
		block = block[close+1:]
	}
	for i := 0; i+1 < len(fields); i += 2 {
		keys[fields[i]] = fields[i+1]
	}
	return keys
}

// parseEntityVec parses an "x y z" triple or a single uniform component,
// falling back to def per component.
func parseEntityVec(s string, def float32) mgl32.Vec3 {
	fields := strings.Fields(s)
	switch len(fields) {
	case 3:
		var v mgl32.Vec3
		for i, f := range fields {
			p, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return mgl32.Vec3{def, def, def}
			}
			v[i] = float32(p)
		}
		return v
	case 1:
		p, err := strconv.ParseFloat(fields[0], 32)
		if err != nil {
			return mgl32.Vec3{def, def, def}
		}
		return mgl32.Vec3{float32(p), float32(p), float32(p)}
	default:
		return mgl32.Vec3{def, def, def}
	}
}
