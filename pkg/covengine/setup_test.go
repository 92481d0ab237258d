package covengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/testutils"
)

const profileOne = `mode: set
example.com/demo/foo.go:3.10,5.2 2 1
example.com/demo/foo.go:7.2,9.3 1 0
example.com/demo/sub/bar.go:1.1,2.2 1 1
`

const profileTwo = `mode: count
example.com/demo/foo.go:7.2,9.3 1 4
`

func writeWorkspace(t *testing.T, profiles ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/demo\n\ngo 1.21\n"), 0o644))

	paths := make([]string, 0, len(profiles))
	for i, content := range profiles {
		path := filepath.Join(dir, "coverage"+string(rune('a'+i))+".out")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return dir, paths
}

func TestEnumerateFilesIsSortedAndModuleRelative(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	dir, paths := writeWorkspace(t, profileOne)
	engine, err := New(logger, dir, paths...)
	require.NoError(t, err)

	assert.Equal(t, []string{"foo.go", "sub/bar.go"}, engine.EnumerateFiles())
}

func TestFileCoverageLineSets(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	dir, paths := writeWorkspace(t, profileOne)
	engine, err := New(logger, dir, paths...)
	require.NoError(t, err)

	fc, err := engine.FileCoverage("foo.go")
	require.NoError(t, err)

	for _, line := range []int{3, 4, 5, 7, 8, 9} {
		assert.True(t, fc.Statements[line], "line %d should be executable", line)
	}
	assert.False(t, fc.Statements[6])
	assert.Equal(t, 1, fc.Hits[3])
	assert.Equal(t, 0, fc.Hits[7])
}

func TestMergingProfilesAddsHits(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	dir, paths := writeWorkspace(t, profileOne, profileTwo)
	engine, err := New(logger, dir, paths...)
	require.NoError(t, err)

	fc, err := engine.FileCoverage("foo.go")
	require.NoError(t, err)

	// 0 hits from the first run plus 4 from the second
	assert.Equal(t, 4, fc.Hits[7])
	assert.Equal(t, 1, fc.Hits[3])
}

func TestBranchArcsFromMultiBlockLines(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	// two blocks opening on line 4, e.g. a single-line if/else
	profile := `mode: set
example.com/demo/cond.go:4.2,4.10 1 1
example.com/demo/cond.go:4.14,4.20 1 0
example.com/demo/cond.go:6.2,7.3 1 1
`
	dir, paths := writeWorkspace(t, profile)
	engine, err := New(logger, dir, paths...)
	require.NoError(t, err)

	fc, err := engine.FileCoverage("cond.go")
	require.NoError(t, err)

	require.Len(t, fc.Branches, 2)
	assert.Equal(t, core.BranchArc{Line: 4, Block: 0, Branch: 0, Hits: 1}, fc.Branches[0])
	assert.Equal(t, core.BranchArc{Line: 4, Block: 0, Branch: 1, Hits: 0}, fc.Branches[1])
}

func TestSingleBlockLinesHaveNoBranches(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	dir, paths := writeWorkspace(t, profileOne)
	engine, err := New(logger, dir, paths...)
	require.NoError(t, err)

	fc, err := engine.FileCoverage("foo.go")
	require.NoError(t, err)
	assert.Empty(t, fc.Branches)
}

func TestUnknownFileErrors(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	dir, paths := writeWorkspace(t, profileOne)
	engine, err := New(logger, dir, paths...)
	require.NoError(t, err)

	_, err = engine.FileCoverage("nope.go")
	assert.Error(t, err)
}

func TestUnparsableProfileErrors(t *testing.T) {
	logger, err := testutils.GetLogger()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.out")
	require.NoError(t, os.WriteFile(path, []byte("this is not a cover profile\n"), 0o644))

	_, err = New(logger, dir, path)
	assert.Error(t, err)
}
