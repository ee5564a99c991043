// Command analyze prints quick, human-readable heuristics about the map
// descriptors in a directory (configs by default). It summarizes board size,
// terrain mix and sites, flags sites unreachable over land, and estimates the
// cheapest private line from each city to its nearest neighbour.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// Link is the cheapest estimated line between two cities.
type Link struct {
	From, To string
	Cost     int
	Tiles    int
}

// Report is the analysis of one map.
type Report struct {
	File         string
	Name         string
	Width        int
	Height       int
	Terrain      map[engine.Terrain]int
	Cities       int
	Towns        int
	Cubes        int
	StartingCash int
	Isolated     []engine.Site
	Nearest      []Link
	Unlinked     []string
}

func main() {
	dir := "configs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding map files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No map files in %s; analyzing the built-in map\n", dir)
		report, _ := analyze("(built-in)", engine.DefaultMap())
		printReport(os.Stdout, report)
		return
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		desc, err := engine.LoadMapFile(file)
		if err != nil {
			fmt.Printf("Error loading map: %v\n", err)
			continue
		}
		report, err := analyze(filepath.Base(file), desc)
		if err != nil {
			fmt.Printf("Error analyzing map: %v\n", err)
			continue
		}
		printReport(os.Stdout, report)
	}
}

func analyze(file string, desc *engine.MapDescriptor) (*Report, error) {
	survey, err := engine.NewSurvey(desc)
	if err != nil {
		return nil, err
	}

	r := &Report{
		File:         file,
		Name:         desc.Name,
		Height:       len(desc.Layout),
		Terrain:      survey.TerrainCounts(),
		Cities:       len(desc.Cities),
		Towns:        len(desc.Towns),
		Cubes:        len(desc.StartingBag),
		StartingCash: desc.Rules().StartingCash,
		Isolated:     survey.Isolated(),
	}
	for _, row := range desc.Layout {
		if len(row) > r.Width {
			r.Width = len(row)
		}
	}

	for _, a := range desc.Cities {
		best := Link{From: a.Name, Cost: -1}
		for _, b := range desc.Cities {
			if a.Name == b.Name {
				continue
			}
			cost, tiles, ok := survey.CheapestBuild(hex.C(a.Col, a.Row), hex.C(b.Col, b.Row))
			if !ok {
				continue
			}
			if best.Cost < 0 || cost < best.Cost {
				best = Link{From: a.Name, To: b.Name, Cost: cost, Tiles: tiles}
			}
		}
		if best.Cost < 0 {
			r.Unlinked = append(r.Unlinked, a.Name)
			continue
		}
		r.Nearest = append(r.Nearest, best)
	}
	return r, nil
}

// Expensive returns the nearest-neighbour links a new player cannot afford
// from starting cash alone.
func (r *Report) Expensive() []Link {
	var out []Link
	for _, l := range r.Nearest {
		if l.Cost > r.StartingCash {
			out = append(out, l)
		}
	}
	return out
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Name: %s\n", r.Name)
	fmt.Fprintf(w, "Board: %d x %d\n", r.Width, r.Height)

	terrains := make([]string, 0, len(r.Terrain))
	for t, n := range r.Terrain {
		terrains = append(terrains, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(terrains)
	fmt.Fprintf(w, "Terrain: %s\n", strings.Join(terrains, " "))
	fmt.Fprintf(w, "Cities: %d, Towns: %d, Cubes: %d\n", r.Cities, r.Towns, r.Cubes)

	if len(r.Isolated) > 0 {
		fmt.Fprintf(w, "WARNING: %d sites cannot be reached over land\n", len(r.Isolated))
		for _, s := range r.Isolated {
			fmt.Fprintf(w, "   Isolated: %s at %s\n", s.Name, s.At)
		}
	} else {
		fmt.Fprintln(w, "All sites are connected over land")
	}

	for _, l := range r.Nearest {
		fmt.Fprintf(w, "   %s -> %s: $%d over %d tiles\n", l.From, l.To, l.Cost, l.Tiles)
	}
	for _, name := range r.Unlinked {
		fmt.Fprintf(w, "   %s has no buildable line to another city\n", name)
	}
	if exp := r.Expensive(); len(exp) > 0 {
		fmt.Fprintf(w, "NOTE: %d cities need more than the $%d starting cash for their first link\n", len(exp), r.StartingCash)
	}
}
