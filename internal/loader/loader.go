// Package loader resolves and loads assets from an extracted game root.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Faultbox/codassets/internal/config"
	"github.com/Faultbox/codassets/internal/logger"
	"github.com/Faultbox/codassets/pkg/formats"
	"github.com/Faultbox/codassets/pkg/iwd"
)

// Asset subdirectories of the game root, as the game archives lay them out.
const (
	DirMaps        = "maps"
	DirXModel      = "xmodel"
	DirXModelParts = "xmodelparts"
	DirXModelSurfs = "xmodelsurfs"
	DirMaterials   = "materials"
	DirSkins       = "skins"
	DirImages      = "images"
)

// Loader loads decoded assets from a game root directory. Loose files win
// over archived ones; paths missing on disk fall through to the .iwd/.pk3
// archives found in the root.
type Loader struct {
	cfg *config.Config

	archivesOnce sync.Once
	archives     []*iwd.Archive

	mu       sync.Mutex
	textures map[string]*formats.TextureImage
}

// New creates a loader over the configured asset root.
func New(cfg *config.Config) *Loader {
	return &Loader{
		cfg:      cfg,
		textures: make(map[string]*formats.TextureImage),
	}
}

// Root returns the asset root directory.
func (l *Loader) Root() string {
	return l.cfg.Assets.Root
}

// Close releases the opened archives.
func (l *Loader) Close() error {
	var errs []error
	for _, a := range l.archives {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.archives = nil
	return errors.Join(errs...)
}

// openArchives scans the root for asset archives once, on first use. An
// unreadable archive is skipped, not fatal.
func (l *Loader) openArchives() {
	var paths []string
	for _, pattern := range []string{"*.iwd", "*.pk3"} {
		matches, err := filepath.Glob(filepath.Join(l.Root(), pattern))
		if err == nil {
			paths = append(paths, matches...)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		archive, err := iwd.Open(path)
		if err != nil {
			logger.Sugar.Warnw("skipping unreadable archive", "archive", path, "error", err)
			continue
		}
		l.archives = append(l.archives, archive)
	}
}

// readAsset reads a root-relative asset path, preferring a loose file and
// falling back to the archives. Later archives override earlier ones, the
// same way the game mounts them.
func (l *Loader) readAsset(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.Root(), rel))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return data, err
	}

	l.archivesOnce.Do(l.openArchives)

	name := filepath.ToSlash(rel)
	for i := len(l.archives) - 1; i >= 0; i-- {
		if l.archives[i].Contains(name) {
			return l.archives[i].Read(name)
		}
	}
	return nil, err
}

// Model is a fully resolved model bundle: the index, the LOD0 skeleton and
// mesh, and the LOD0 materials.
type Model struct {
	XModel    *formats.XModel
	Part      *formats.XModelPart // nil when the model has no skeleton file
	Surf      *formats.XModelSurf
	Materials []*formats.Material
}

// LoadModel loads a model and the assets its first LOD references.
func (l *Loader) LoadModel(name string) (*Model, error) {
	data, err := l.readAsset(filepath.Join(DirXModel, name))
	if err != nil {
		return nil, fmt.Errorf("loading xmodel %s: %w", name, err)
	}
	model, err := formats.ParseXModel(data)
	if err != nil {
		return nil, fmt.Errorf("loading xmodel %s: %w", name, err)
	}
	model.Name = name
	if len(model.Lods) == 0 {
		return nil, fmt.Errorf("xmodel %s has no populated lods", name)
	}
	lod0 := model.Lods[0]

	part, err := l.loadPart(lod0.Name)
	if err != nil {
		return nil, err
	}

	var bones []formats.Bone
	if part != nil {
		bones = part.Bones
	}
	surf, err := l.loadSurf(lod0.Name, bones)
	if err != nil {
		return nil, err
	}

	bundle := &Model{XModel: model, Part: part, Surf: surf}
	for _, raw := range lod0.Materials {
		material, err := l.loadModelMaterial(model, raw)
		if err != nil {
			return nil, err
		}
		bundle.Materials = append(bundle.Materials, material)
	}
	return bundle, nil
}

// loadPart loads the skeleton of a LOD. Not every model ships one; rigid
// props render without a skeleton and load as nil.
func (l *Loader) loadPart(lodName string) (*formats.XModelPart, error) {
	data, err := l.readAsset(filepath.Join(DirXModelParts, lodName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading xmodelpart %s: %w", lodName, err)
	}
	part, err := formats.ParseXModelPart(data)
	if err != nil {
		return nil, fmt.Errorf("loading xmodelpart %s: %w", lodName, err)
	}
	part.Name = lodName
	return part, nil
}

func (l *Loader) loadSurf(lodName string, bones []formats.Bone) (*formats.XModelSurf, error) {
	data, err := l.readAsset(filepath.Join(DirXModelSurfs, lodName))
	if err != nil {
		return nil, fmt.Errorf("loading xmodelsurf %s: %w", lodName, err)
	}
	surf, err := formats.ParseXModelSurf(data, bones)
	if err != nil {
		if surf == nil || len(surf.Surfaces) == 0 {
			return nil, fmt.Errorf("loading xmodelsurf %s: %w", lodName, err)
		}
		// Some surfaces were dropped but the rest of the mesh is usable.
		logger.Sugar.Warnw("partial mesh decode", "surf", lodName, "error", err)
	}
	surf.Name = lodName
	return surf, nil
}

// loadModelMaterial resolves one LOD material entry. v14 has no material
// files: the entry names a texture under skins/ and stands in for a
// single-texture material.
func (l *Loader) loadModelMaterial(model *formats.XModel, raw string) (*formats.Material, error) {
	if model.Version == formats.VersionCoD1 {
		return &formats.Material{
			Name: model.MaterialName(raw),
			Textures: []formats.MaterialTexture{
				{Name: filepath.Join(DirSkins, raw), Role: formats.RoleColorMap},
			},
		}, nil
	}

	data, err := l.readAsset(filepath.Join(DirMaterials, model.MaterialName(raw)))
	if err != nil {
		return nil, fmt.Errorf("loading material %s: %w", raw, err)
	}
	material, err := formats.ParseMaterial(model.Version, data)
	if err != nil {
		return nil, fmt.Errorf("loading material %s: %w", raw, err)
	}
	return material, nil
}

// LoadMap loads a compiled map from the maps directory. A bare name tries
// the CoD1 and CoD2 extensions in turn.
func (l *Loader) LoadMap(name string) (*formats.IBSP, error) {
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = []string{name + ".bsp", name + ".d3dbsp"}
	}

	var firstErr error
	for _, candidate := range candidates {
		data, err := l.readAsset(filepath.Join(DirMaps, candidate))
		if err == nil {
			bsp, err := formats.ParseIBSP(data)
			if err != nil {
				return nil, fmt.Errorf("loading map %s: %w", candidate, err)
			}
			bsp.Name = strings.TrimSuffix(candidate, filepath.Ext(candidate))
			return bsp, nil
		}
		if firstErr == nil || !errors.Is(err, os.ErrNotExist) {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("loading map %s: %w", name, firstErr)
}

// ResolveMapMaterial finds the texture file behind a map material name.
// v59 material names come without an extension, so the match is by pattern.
func (l *Loader) ResolveMapMaterial(version formats.IBSPVersion, name string) (string, error) {
	if version != formats.IBSPVersionCoD1 {
		return filepath.Join(DirMaterials, name), nil
	}

	matches, err := filepath.Glob(filepath.Join(l.Root(), filepath.FromSlash(name)) + ".*")
	if err == nil && len(matches) > 0 {
		rel, err := filepath.Rel(l.Root(), matches[0])
		if err != nil {
			return "", err
		}
		return rel, nil
	}

	// Loose file not found, try the archives.
	l.archivesOnce.Do(l.openArchives)
	prefix := strings.ToLower(name) + "."
	for i := len(l.archives) - 1; i >= 0; i-- {
		for _, f := range l.archives[i].List() {
			if strings.HasPrefix(f, prefix) {
				return filepath.FromSlash(f), nil
			}
		}
	}
	return "", fmt.Errorf("no texture file for map material %s", name)
}
