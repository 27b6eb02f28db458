package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"

	"github.com/Faultbox/codassets/internal/logger"
	"github.com/Faultbox/codassets/pkg/formats"
)

// LoadTexture loads a texture from the images directory by its bare name.
// A pre-converted .dds sibling short-circuits the IWi decode; failing that
// the configured converter gets a chance to produce one, and the in-process
// IWi decoder is the fallback. Results are cached.
func (l *Loader) LoadTexture(name string) (*formats.TextureImage, error) {
	name = strings.TrimSuffix(name, filepath.Ext(name))

	l.mu.Lock()
	if img, ok := l.textures[name]; ok {
		l.mu.Unlock()
		return img, nil
	}
	l.mu.Unlock()

	img, err := l.loadTextureByName(name)
	if err != nil {
		return nil, fmt.Errorf("loading texture %s: %w", name, err)
	}

	l.mu.Lock()
	l.textures[name] = img
	l.mu.Unlock()
	return img, nil
}

func (l *Loader) loadTextureByName(name string) (*formats.TextureImage, error) {
	// Conversion is strictly a loose-file affair: the converter writes its
	// .dds next to the .iwi on disk.
	base := filepath.Join(l.Root(), DirImages, name)
	if l.cfg.Assets.PreferDDS {
		if _, err := os.Stat(base + ".dds"); err != nil && l.cfg.Converter.Path != "" {
			if cerr := l.convert(base + ".iwi"); cerr != nil {
				logger.Sugar.Warnw("texture conversion failed", "texture", base, "error", cerr)
			}
		}
		if dds, err := formats.ParseDDSFile(base + ".dds"); err == nil {
			return &dds.Image, nil
		}
	}

	data, err := l.readAsset(filepath.Join(DirImages, name+".iwi"))
	if err != nil {
		return nil, err
	}
	iwi, err := formats.ParseIWi(data)
	if err != nil {
		return nil, err
	}
	return &iwi.Image, nil
}

// convert runs the external converter, which writes a .dds next to the .iwi.
func (l *Loader) convert(iwiPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.Converter.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.cfg.Converter.Path, "-i", iwiPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", l.cfg.Converter.Path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// LoadTextureFile loads a texture by root-relative path, dispatching on the
// file extension. Used for v14 skins and v59 map textures, which live
// outside the images directory and keep their extensions.
func (l *Loader) LoadTextureFile(relPath string) (*formats.TextureImage, error) {
	l.mu.Lock()
	if img, ok := l.textures[relPath]; ok {
		l.mu.Unlock()
		return img, nil
	}
	l.mu.Unlock()

	data, err := l.readAsset(relPath)
	if err != nil {
		return nil, fmt.Errorf("loading texture file %s: %w", relPath, err)
	}

	var img *formats.TextureImage
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".iwi":
		var iwi *formats.IWi
		if iwi, err = formats.ParseIWi(data); err == nil {
			img = &iwi.Image
		}
	case ".dds":
		var dds *formats.DDS
		if dds, err = formats.ParseDDS(data); err == nil {
			img = &dds.Image
		}
	case ".tga":
		img, err = decodeTGA(data)
	default:
		err = fmt.Errorf("unsupported texture extension %q", filepath.Ext(relPath))
	}
	if err != nil {
		return nil, fmt.Errorf("loading texture file %s: %w", relPath, err)
	}

	l.mu.Lock()
	l.textures[relPath] = img
	l.mu.Unlock()
	return img, nil
}

// decodeTGA decodes a TARGA file into the common RGBA8 layout.
func decodeTGA(data []byte) (*formats.TextureImage, error) {
	src, err := tga.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	return &formats.TextureImage{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: nrgba.Pix,
	}, nil
}
