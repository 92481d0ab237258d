// Package digester turns a working-tree file plus the engine's recorded hits
// into a payload source file entry.
package digester

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/pkg/global"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

type digester struct {
	logger     lumber.Logger
	marker     string
	blockStart string
	blockEnd   string
}

// New returns a SourceDigester using the default exclusion markers.
func New(logger lumber.Logger) core.SourceDigester {
	return NewWithMarkers(logger, global.ExcludeMarker, global.ExcludeBlockStart, global.ExcludeBlockEnd)
}

// NewWithMarkers returns a SourceDigester recognizing custom exclusion markers.
func NewWithMarkers(logger lumber.Logger, marker, blockStart, blockEnd string) core.SourceDigester {
	return &digester{
		logger:     logger,
		marker:     marker,
		blockStart: blockStart,
		blockEnd:   blockEnd,
	}
}

// Digest reads the file at path and produces the source_files entry named
// name. Exclusion markers win over recorded hits, and the coverage array
// always has exactly one element per line of the normalized source.
func (d *digester) Digest(path, name string, cov *core.FileCoverage) (*core.SourceFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, &errs.EncodingError{Path: path}
	}

	// normalize line endings so the digest and the coverage array length are
	// identical across platforms
	source := normalizeEOL(string(raw))
	lines := splitLines(source)

	// the digest is recomputed on every read, never cached across files
	sum := md5.Sum([]byte(source))

	states := make([]core.LineState, len(lines))
	coverage := make([]*int, len(lines))
	excluding := false
	for i, line := range lines {
		num := i + 1
		closesBlock := strings.Contains(line, d.blockEnd)
		if strings.Contains(line, d.blockStart) {
			excluding = true
		}

		switch {
		case excluding || closesBlock || strings.Contains(line, d.marker):
			states[i] = core.Excluded
		case cov != nil && cov.Statements[num]:
			hits := cov.Hits[num]
			if hits > 0 {
				states[i] = core.Covered
			} else {
				states[i] = core.Uncovered
			}
			coverage[i] = &hits
		default:
			states[i] = core.NotCode
		}

		if closesBlock {
			excluding = false
		}
	}

	branches, err := encodeBranches(name, cov, len(lines))
	if err != nil {
		return nil, err
	}

	return &core.SourceFile{
		Name:         name,
		Source:       source,
		SourceDigest: hex.EncodeToString(sum[:]),
		Coverage:     coverage,
		Branches:     branches,
		States:       states,
	}, nil
}

// encodeBranches flattens branch arcs into the wire quadruples
// (line, block, branch, hits).
func encodeBranches(name string, cov *core.FileCoverage, lineCount int) ([]int, error) {
	if cov == nil || len(cov.Branches) == 0 {
		return nil, nil
	}
	branches := make([]int, 0, len(cov.Branches)*4)
	for _, arc := range cov.Branches {
		if arc.Line < 1 || arc.Line > lineCount {
			return nil, errs.New(fmt.Sprintf("branch source line %d is outside %s (%d lines)", arc.Line, name, lineCount))
		}
		branches = append(branches, arc.Line, arc.Block, arc.Branch, arc.Hits)
	}
	return branches, nil
}

func normalizeEOL(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	return strings.ReplaceAll(source, "\r", "\n")
}

// splitLines splits normalized content into lines; a trailing newline does
// not start another line, and an empty file has no lines.
func splitLines(source string) []string {
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
