// spawngen writes bot spawn lists for load testing the interest maps.
//
// Usage:
//
//	go run ./cmd/spawngen <layout> [-out path] [-n count] [-spacing chunks]
//
// Layouts: grid, ring, crowd
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/l1jgo/interest/internal/data"
	"gopkg.in/yaml.v3"
)

type spawnListYAML struct {
	Bots []data.SpawnEntry `yaml:"bots"`
}

type options struct {
	n            int
	spacing      int32
	viewDistance int
	wander       int
}

// grid places n×n stationary groups of one bot, spacing chunks apart,
// centred on the origin.
func grid(o options) []data.SpawnEntry {
	var out []data.SpawnEntry
	half := int32(o.n-1) * o.spacing / 2
	for i := 0; i < o.n; i++ {
		for j := 0; j < o.n; j++ {
			out = append(out, data.SpawnEntry{
				Name:         fmt.Sprintf("grid-%d-%d", i, j),
				X:            int32(i)*o.spacing - half,
				Z:            int32(j)*o.spacing - half,
				ViewDistance: o.viewDistance,
				WanderRange:  o.wander,
			})
		}
	}
	return out
}

// ring places n wandering bots on a circle of radius n*spacing/(2π), so that
// neighbours are about spacing chunks apart.
func ring(o options) []data.SpawnEntry {
	out := make([]data.SpawnEntry, 0, o.n)
	radius := float64(o.n) * float64(o.spacing) / (2 * math.Pi)
	for i := 0; i < o.n; i++ {
		a := 2 * math.Pi * float64(i) / float64(o.n)
		out = append(out, data.SpawnEntry{
			Name:         fmt.Sprintf("ring-%d", i),
			X:            int32(math.Round(radius * math.Cos(a))),
			Z:            int32(math.Round(radius * math.Sin(a))),
			ViewDistance: o.viewDistance,
			WanderRange:  max(o.wander, 1),
		})
	}
	return out
}

// crowd puts every bot in one group around the origin. All of them share
// most of their chunks, which stresses the interned sets.
func crowd(o options) []data.SpawnEntry {
	return []data.SpawnEntry{{
		Name:         "crowd",
		Count:        o.n,
		RandomX:      o.spacing,
		RandomZ:      o.spacing,
		ViewDistance: o.viewDistance,
		WanderRange:  o.wander,
	}}
}

var layouts = map[string]func(options) []data.SpawnEntry{
	"grid":  grid,
	"ring":  ring,
	"crowd": crowd,
}

func writeYAML(path string, v any, comment string) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if comment != "" {
		fmt.Fprintln(f, comment)
		fmt.Fprintln(f)
	}
	_, err = f.Write(out)
	return err
}

func generate(layout, path string, o options) (int, error) {
	fn, ok := layouts[layout]
	if !ok {
		return 0, fmt.Errorf("unknown layout %q", layout)
	}
	if o.n <= 0 || o.spacing < 0 {
		return 0, fmt.Errorf("n must be positive and spacing non-negative")
	}
	comment := fmt.Sprintf("# generated by spawngen %s -n %d -spacing %d", layout, o.n, o.spacing)
	if err := writeYAML(path, spawnListYAML{Bots: fn(o)}, comment); err != nil {
		return 0, err
	}
	// Read back through the server's loader so a bad list fails here.
	list, err := data.LoadSpawnList(path)
	if err != nil {
		return 0, err
	}
	return list.Count(), nil
}

func printUsage() {
	fmt.Println("Usage: spawngen <layout> [-out path] [-n count] [-spacing chunks] [-view d] [-wander r]")
	fmt.Println()
	fmt.Println("Layouts:")
	fmt.Println("  grid    n×n stationary bots on a square lattice")
	fmt.Println("  ring    n wandering bots on a circle")
	fmt.Println("  crowd   n bots in one spread group around the origin")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	layout := os.Args[1]
	if layout == "-h" || layout == "--help" || layout == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(layout, flag.ExitOnError)
	out := fs.String("out", filepath.Join("data", "yaml", "spawn_list.yaml"), "output file")
	n := fs.Int("n", 10, "bots (grid: per side)")
	spacing := fs.Int("spacing", 8, "chunks between bots")
	view := fs.Int("view", 0, "view distance, 0 = server default")
	wander := fs.Int("wander", 0, "wander range in chunks")
	_ = fs.Parse(os.Args[2:])

	count, err := generate(layout, *out, options{
		n:            *n,
		spacing:      int32(*spacing),
		viewDistance: *view,
		wander:       *wander,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d bots to %s\n", count, *out)
}
