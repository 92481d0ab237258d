package digester

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/testutils"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("could not write test file: %v", err)
	}
	return path
}

func intPtr(v int) *int { return &v }

func TestDigestLineStates(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	content := "l1\nl2\nl3\nl4 // coverage:ignore\nl5\nl6\nl7\nl8\nl9\nl10\n"
	path := writeFile(t, "a.go", []byte(content))

	cov := &core.FileCoverage{
		Name:       "a.go",
		Statements: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true, 10: true},
		Hits:       map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 1},
	}

	sf, err := New(logger).Digest(path, "a.go", cov)
	require.NoError(t, err)

	want := []*int{intPtr(1), intPtr(1), intPtr(1), nil, intPtr(1), intPtr(0), intPtr(0), intPtr(0), intPtr(0), intPtr(0)}
	assert.Equal(t, want, sf.Coverage)
	// line 4 was hit but the marker wins
	assert.Equal(t, core.Excluded, sf.States[3])
	assert.Equal(t, 4, sf.CoveredLines())
	assert.Equal(t, 9, sf.RelevantLines())
}

func TestDigestEmptyFile(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	path := writeFile(t, "empty.go", []byte{})

	sf, err := New(logger).Digest(path, "empty.go", nil)
	require.NoError(t, err)

	assert.Empty(t, sf.Coverage)
	assert.Empty(t, sf.States)
	// md5 of the empty body
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", sf.SourceDigest)
	assert.Equal(t, 0, sf.RelevantLines())
}

func TestDigestExclusionBlock(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	content := "a\n// coverage:ignore-start\nb\nc\n// coverage:ignore-end\nd\n"
	path := writeFile(t, "block.go", []byte(content))

	cov := &core.FileCoverage{
		Name:       "block.go",
		Statements: map[int]bool{1: true, 3: true, 4: true, 6: true},
		Hits:       map[int]int{1: 2, 3: 5, 6: 0},
	}

	sf, err := New(logger).Digest(path, "block.go", cov)
	require.NoError(t, err)

	wantStates := []core.LineState{core.Covered, core.Excluded, core.Excluded, core.Excluded, core.Excluded, core.Uncovered}
	assert.Equal(t, wantStates, sf.States)
	// lines after the end marker are classified normally again
	assert.Equal(t, intPtr(0), sf.Coverage[5])
	assert.Equal(t, intPtr(2), sf.Coverage[0])
}

func TestDigestNormalizesLineEndings(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	unix := writeFile(t, "unix.go", []byte("a\nb\nc\n"))
	windows := writeFile(t, "win.go", []byte("a\r\nb\r\nc\r\n"))

	d := New(logger)
	sfUnix, err := d.Digest(unix, "x.go", nil)
	require.NoError(t, err)
	sfWin, err := d.Digest(windows, "x.go", nil)
	require.NoError(t, err)

	assert.Equal(t, sfUnix.SourceDigest, sfWin.SourceDigest)
	assert.Len(t, sfWin.Coverage, 3)
}

func TestDigestPadsPastEngineRange(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	path := writeFile(t, "pad.go", []byte("a\nb\nc\nd\n"))
	cov := &core.FileCoverage{
		Name:       "pad.go",
		Statements: map[int]bool{1: true, 2: true},
		Hits:       map[int]int{1: 1},
	}

	sf, err := New(logger).Digest(path, "pad.go", cov)
	require.NoError(t, err)

	assert.Len(t, sf.Coverage, 4)
	assert.Equal(t, core.NotCode, sf.States[2])
	assert.Equal(t, core.NotCode, sf.States[3])
	assert.Nil(t, sf.Coverage[2])
	assert.Nil(t, sf.Coverage[3])
}

func TestDigestRejectsInvalidUTF8(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	path := writeFile(t, "binary.go", []byte{0xff, 0xfe, 0x00, 0x41})

	_, err = New(logger).Digest(path, "binary.go", nil)
	var encErr *errs.EncodingError
	assert.True(t, errors.As(err, &encErr), "expected EncodingError, got %v", err)
}

func TestDigestBranches(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	path := writeFile(t, "branch.go", []byte("a\nb\nc\n"))
	cov := &core.FileCoverage{
		Name:       "branch.go",
		Statements: map[int]bool{2: true},
		Hits:       map[int]int{2: 1},
		Branches: []core.BranchArc{
			{Line: 2, Block: 0, Branch: 3, Hits: 1},
			{Line: 2, Block: 0, Branch: 4, Hits: 0},
		},
	}

	sf, err := New(logger).Digest(path, "branch.go", cov)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 3, 1, 2, 0, 4, 0}, sf.Branches)
}

func TestDigestRejectsBranchOutsideFile(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	path := writeFile(t, "branch.go", []byte("a\nb\n"))
	cov := &core.FileCoverage{
		Name:     "branch.go",
		Branches: []core.BranchArc{{Line: 9, Branch: 1, Hits: 1}},
	}

	_, err = New(logger).Digest(path, "branch.go", cov)
	assert.Error(t, err)
}
