package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"

	"github.com/Faultbox/codassets/internal/config"
	"github.com/Faultbox/codassets/internal/loader"
	"github.com/Faultbox/codassets/pkg/formats"
)

func cmdExport(l *loader.Loader, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: codtool export <name...>")
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Export.Dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	exported := 0
	for _, name := range args {
		img, err := l.LoadTexture(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", name, err)
			continue
		}

		base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		outputPath := filepath.Join(cfg.Export.Dir, base+"."+cfg.Export.Format)
		if err := writeImage(outputPath, cfg.Export.Format, img); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Exported: %s (%dx%d)\n", outputPath, img.Width, img.Height)
		exported++
	}

	if exported < len(args) {
		os.Exit(1)
	}
}

// writeImage encodes a decoded texture in the requested format.
func writeImage(path, format string, img *formats.TextureImage) error {
	nrgba := &image.NRGBA{
		Pix:    img.Pixels,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(format) {
	case "webp":
		err = nativewebp.Encode(f, nrgba, nil)
	case "tga":
		err = tga.Encode(f, nrgba)
	case "png":
		err = png.Encode(f, nrgba)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}
	return nil
}
