package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
)

// ValidationResult captures the outcome of validating a single map file.
// Notes are informational; Errors are only set when Valid is false.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Notes  []string
}

// validateMapFile loads a map descriptor, runs the structural checks, and
// then checks that every city and town can be reached over land.
func validateMapFile(path string) ValidationResult {
	result := ValidationResult{File: filepath.Base(path), Valid: true}

	desc, err := engine.LoadMapFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	survey, err := engine.NewSurvey(desc)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	for _, site := range survey.Isolated() {
		kind := "city"
		if site.Town {
			kind = "town"
		}
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("%s %q at %s cannot be reached over land from %s", kind, site.Name, site.At, desc.Cities[0].Name))
	}
	if !result.Valid {
		return result
	}

	rules := desc.Rules()
	result.Notes = append(result.Notes,
		fmt.Sprintf("%s: %d cities, %d towns, %d goods columns", desc.Name, len(desc.Cities), len(desc.Towns), len(desc.Columns)),
		fmt.Sprintf("%d cubes in the bag, %d new city tiles", len(desc.StartingBag), len(desc.NewCities)),
		fmt.Sprintf("turn limits: %v", rules.TurnLimits),
	)
	return result
}

// mapFiles expands the arguments into JSON files; no arguments means every
// JSON file in dir.
func mapFiles(args []string, dir string) ([]string, error) {
	if len(args) == 0 {
		args = []string{dir}
	}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// printResults writes one block per file and reports whether all passed.
func printResults(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, r := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), r.File)
		if r.Valid {
			fmt.Fprintln(w, "VALID")
			for _, note := range r.Notes {
				fmt.Fprintln(w, "  "+note)
			}
			continue
		}
		allValid = false
		fmt.Fprintln(w, "INVALID")
		for _, e := range r.Errors {
			fmt.Fprintln(w, "  - "+e)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "All maps are valid")
	} else {
		fmt.Fprintln(w, "Some maps have errors")
	}
	return allValid
}

func (a *app) validate(ctx context.Context, cmd *cli.Command) error {
	files, err := mapFiles(cmd.Args().Slice(), cmd.String("config-dir"))
	if err != nil {
		return fmt.Errorf("failed to find map files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no map files found")
	}

	results := make([]ValidationResult, 0, len(files))
	for _, f := range files {
		results = append(results, validateMapFile(f))
	}
	a.logger.Debug("validated maps", zap.Int("files", len(files)))

	if !printResults(cmd.Root().Writer, results) {
		return fmt.Errorf("%d of %d maps failed validation", countInvalid(results), len(results))
	}
	return nil
}

func countInvalid(results []ValidationResult) int {
	n := 0
	for _, r := range results {
		if !r.Valid {
			n++
		}
	}
	return n
}
