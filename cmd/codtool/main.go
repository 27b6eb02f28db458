// codtool is a CLI utility for inspecting and exporting Call of Duty
// assets from an extracted game directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/codassets/internal/config"
	"github.com/Faultbox/codassets/internal/loader"
	"github.com/Faultbox/codassets/internal/logger"
	"github.com/Faultbox/codassets/pkg/formats"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	l := loader.New(cfg)

	command := args[0]
	args = args[1:]

	switch command {
	case "map":
		cmdMap(l, args)
	case "model":
		cmdModel(l, args)
	case "texture", "tex":
		cmdTexture(l, args)
	case "export", "x":
		cmdExport(l, cfg, args)
	case "list", "ls":
		cmdList(args)
	case "extract":
		cmdExtract(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codtool - Call of Duty asset utility

Usage:
  codtool [options] <command> [args]

Commands:
  map <name>                         Show compiled map information
  model <name>                       Show model information
  texture <name>                     Show texture information
  export <name...>                   Export textures as images
  list <file.iwd> [pattern]          List archive contents
  extract <file.iwd> <path> [dir]    Extract file(s) from an archive

Options:
  -root <dir>            Asset root directory
  -out <dir>             Export output directory
  -format <fmt>          Export image format (webp, tga, png)
  -converter <bin>       External IWi converter binary
  -no-dds                Always decode .iwi, ignore converted .dds files
  -config <file>         Config file path
  -debug                 Enable debug logging

Examples:
  codtool -root ./main map carentan
  codtool model xmodel/tank_tiger
  codtool -format png export brick_c metal_rust_c
  codtool list iwd_05.iwd "*.iwi"`)
}

func cmdMap(l *loader.Loader, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: codtool map <name>")
		os.Exit(1)
	}

	bsp, err := l.LoadMap(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var triangles int
	for _, s := range bsp.Surfaces {
		triangles += len(s.Triangles)
	}

	fmt.Printf("Map:       %s\n", bsp.Name)
	fmt.Printf("Version:   %s\n", bsp.Version)
	fmt.Printf("Materials: %d\n", len(bsp.Materials))
	fmt.Printf("Surfaces:  %d (%d triangles)\n", len(bsp.Surfaces), triangles)
	fmt.Printf("Models:    %d placed\n", len(bsp.Entities))
	fmt.Println()
	fmt.Println("Materials:")
	for _, m := range bsp.Materials {
		fmt.Printf("  %-48s flags 0x%08x\n", m.Name, m.Flags)
	}

	if len(bsp.Entities) > 0 {
		fmt.Println()
		fmt.Println("Placed models:")
		for _, e := range bsp.Entities {
			fmt.Printf("  %-48s at (%.1f, %.1f, %.1f)\n", e.Name, e.Origin[0], e.Origin[1], e.Origin[2])
		}
	}
}

func cmdModel(l *loader.Loader, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: codtool model <name>")
		os.Exit(1)
	}

	model, err := l.LoadModel(filepath.Base(args[0]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model:   %s\n", model.XModel.Name)
	fmt.Printf("Version: %s\n", model.XModel.Version)
	fmt.Println()
	fmt.Println("LODs:")
	for _, lod := range model.XModel.Lods {
		fmt.Printf("  %-40s distance %.1f\n", lod.Name, lod.Distance)
	}

	if model.Part != nil {
		fmt.Println()
		fmt.Printf("Skeleton: %d bones\n", len(model.Part.Bones))
		for i, bone := range model.Part.Bones {
			parent := "(root)"
			if bone.Parent >= 0 {
				parent = model.Part.Bones[bone.Parent].Name
			}
			fmt.Printf("  %3d %-24s parent %s\n", i, bone.Name, parent)
		}
	}

	fmt.Println()
	fmt.Printf("Mesh: %d surfaces\n", len(model.Surf.Surfaces))
	for i, s := range model.Surf.Surfaces {
		fmt.Printf("  surface %d: %d vertices, %d triangles\n", i, len(s.Vertices), len(s.Triangles))
	}

	fmt.Println()
	fmt.Println("Materials:")
	for _, m := range model.Materials {
		fmt.Printf("  %s\n", m.Name)
		for _, tex := range m.Textures {
			fmt.Printf("    %-12s %s\n", tex.Role, tex.Name)
		}
	}
}

func cmdTexture(l *loader.Loader, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: codtool texture <name>")
		os.Exit(1)
	}

	name := strings.TrimSuffix(args[0], filepath.Ext(args[0]))

	// The container header has detail the decoded image no longer carries.
	if iwi, err := formats.ParseIWiFile(filepath.Join(l.Root(), loader.DirImages, name+".iwi")); err == nil {
		fmt.Printf("Texture: %s\n", iwi.Name)
		fmt.Printf("Version: %s\n", iwi.Version)
		fmt.Printf("Format:  %s\n", iwi.Format)
		fmt.Printf("Usage:   0x%02x\n", iwi.Usage)
		fmt.Printf("Size:    %dx%d\n", iwi.Image.Width, iwi.Image.Height)
		return
	}

	img, err := l.LoadTexture(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Texture: %s\n", name)
	fmt.Printf("Size:    %dx%d\n", img.Width, img.Height)
}
