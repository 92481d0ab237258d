// Package covengine adapts Go cover profiles to the CoverageEngine boundary.
package covengine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/cover"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

type engine struct {
	logger lumber.Logger
	files  map[string]*core.FileCoverage
	order  []string
}

// blockKey identifies a profile block within a file; identical blocks from
// separate profiles merge by adding their counts.
type blockKey struct {
	line int
	col  int
}

type fileAccumulator struct {
	cov      *core.FileCoverage
	arcHits  map[blockKey]int
	arcOrder []blockKey
}

// New parses the given cover profiles, merging hit counts across profiles,
// and returns them behind the CoverageEngine boundary. Profile entries are
// keyed by import path; they are rewritten relative to the module rooted at
// repoRoot so they resolve against the working tree.
func New(logger lumber.Logger, repoRoot string, profilePaths ...string) (core.CoverageEngine, error) {
	module := modulePath(repoRoot)
	accs := make(map[string]*fileAccumulator)
	for _, path := range profilePaths {
		profiles, err := cover.ParseProfiles(path)
		if err != nil {
			return nil, fmt.Errorf("could not parse cover profile %s: %w", path, err)
		}
		for _, profile := range profiles {
			merge(accs, profile, module)
		}
	}

	files := make(map[string]*core.FileCoverage, len(accs))
	order := make([]string, 0, len(accs))
	for name, acc := range accs {
		acc.cov.Branches = acc.branchArcs()
		files[name] = acc.cov
		order = append(order, name)
	}
	sort.Strings(order)

	logger.Debugf("loaded %d files from %d cover profiles", len(files), len(profilePaths))
	return &engine{logger: logger, files: files, order: order}, nil
}

func merge(accs map[string]*fileAccumulator, profile *cover.Profile, module string) {
	name := profile.FileName
	if module != "" {
		name = strings.TrimPrefix(name, module+"/")
	}
	acc, ok := accs[name]
	if !ok {
		acc = &fileAccumulator{
			cov: &core.FileCoverage{
				Name:       name,
				Statements: make(map[int]bool),
				Hits:       make(map[int]int),
			},
			arcHits: make(map[blockKey]int),
		}
		accs[name] = acc
	}
	for _, block := range profile.Blocks {
		for line := block.StartLine; line <= block.EndLine; line++ {
			acc.cov.Statements[line] = true
			acc.cov.Hits[line] += block.Count
		}
		key := blockKey{line: block.StartLine, col: block.StartCol}
		if _, seen := acc.arcHits[key]; !seen {
			acc.arcOrder = append(acc.arcOrder, key)
		}
		acc.arcHits[key] += block.Count
	}
}

// branchArcs derives branch data from block boundaries: a line where more than
// one block starts is a branch point, and each block on it is one destination.
func (a *fileAccumulator) branchArcs() []core.BranchArc {
	perLine := make(map[int]int)
	for _, key := range a.arcOrder {
		perLine[key.line]++
	}

	keys := append([]blockKey(nil), a.arcOrder...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].line != keys[j].line {
			return keys[i].line < keys[j].line
		}
		return keys[i].col < keys[j].col
	})

	var arcs []core.BranchArc
	branch := make(map[int]int)
	for _, key := range keys {
		if perLine[key.line] < 2 {
			continue
		}
		arcs = append(arcs, core.BranchArc{
			Line:   key.line,
			Block:  0,
			Branch: branch[key.line],
			Hits:   a.arcHits[key],
		})
		branch[key.line]++
	}
	return arcs
}

func (e *engine) EnumerateFiles() []string {
	return append([]string(nil), e.order...)
}

func (e *engine) FileCoverage(name string) (*core.FileCoverage, error) {
	fc, ok := e.files[name]
	if !ok {
		return nil, errs.New(fmt.Sprintf("file %s is not tracked by the cover profiles", name))
	}
	return fc, nil
}

// modulePath reads the module directive from go.mod so profile entries keyed
// by import path map back to working tree paths.
func modulePath(repoRoot string) string {
	f, err := os.Open(filepath.Join(repoRoot, "go.mod"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}
