// Package reportbuilder assembles the coverage payload from the measurement
// engine and the metadata collectors.
package reportbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/covclient/coveralls-go/config"
	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/pkg/global"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

type builder struct {
	cfg      *config.CoverallsConfig
	engine   core.CoverageEngine
	digester core.SourceDigester
	git      core.GitCollector
	ci       core.CIDetector
	logger   lumber.Logger
	now      func() time.Time
}

// New returns a ReportBuilder wired to the given collaborators.
func New(cfg *config.CoverallsConfig, engine core.CoverageEngine, digester core.SourceDigester,
	git core.GitCollector, ci core.CIDetector, logger lumber.Logger) core.ReportBuilder {
	return &builder{
		cfg:      cfg,
		engine:   engine,
		digester: digester,
		git:      git,
		ci:       ci,
		logger:   logger,
		now:      time.Now,
	}
}

// Build produces the complete payload. Files that fail digesting are recorded
// on the payload's skip list, not fatal; an empty result set is fatal because
// an empty report must never be submitted.
func (b *builder) Build(ctx context.Context) (*core.CoveragePayload, error) {
	if err := b.validateFilters(); err != nil {
		return nil, err
	}

	sourceFiles := []*core.SourceFile{}
	skipped := []core.SkippedFile{}
	for _, name := range b.engine.EnumerateFiles() {
		if !b.matches(name) {
			continue
		}
		cov, err := b.engine.FileCoverage(name)
		if err != nil {
			skipped = append(skipped, core.SkippedFile{Name: name, Reason: err.Error()})
			continue
		}
		sf, err := b.digester.Digest(filepath.Join(b.cfg.RepoRoot, name), b.rewritePath(name), cov)
		if err != nil {
			b.logger.Warnf("skipping %s: %v", name, err)
			skipped = append(skipped, core.SkippedFile{Name: name, Reason: err.Error()})
			continue
		}
		sourceFiles = append(sourceFiles, sf)
	}

	if len(sourceFiles) == 0 {
		return nil, errs.ErrNoCoverageData
	}

	// the collector and the detector run once for the whole payload
	ciCtx := b.ci.Detect()
	gitInfo := b.git.Collect(ctx)

	payload := &core.CoveragePayload{
		RepoToken:          ciCtx.RepoToken,
		ServiceName:        ciCtx.ServiceName,
		ServiceJobID:       ciCtx.JobID,
		ServiceJobNumber:   ciCtx.JobNumber,
		ServiceNumber:      ciCtx.BuildNumber,
		ServiceBuildURL:    ciCtx.BuildURL,
		ServiceBranch:      ciCtx.Branch,
		ServicePullRequest: ciCtx.PullRequest,
		FlagName:           ciCtx.FlagName,
		Parallel:           ciCtx.Parallel,
		RunAt:              b.now().UTC().Format(global.RunAtLayout),
		Git:                gitInfo,
		SourceFiles:        sourceFiles,
		Skipped:            skipped,
	}
	b.applyOverrides(payload)

	// parallel shards need a shared build number for aggregation; mint a run
	// id when the environment provides none
	if payload.Parallel && payload.ServiceNumber == "" {
		payload.ServiceNumber = uuid.NewString()
	}

	return payload, nil
}

// applyOverrides lets explicit configuration win over detected values.
func (b *builder) applyOverrides(p *core.CoveragePayload) {
	if b.cfg.RepoToken != "" {
		p.RepoToken = b.cfg.RepoToken
	}
	if b.cfg.ServiceName != "" {
		p.ServiceName = b.cfg.ServiceName
	}
	if b.cfg.FlagName != "" {
		p.FlagName = b.cfg.FlagName
	}
	if b.cfg.Parallel {
		p.Parallel = true
	}
}

func (b *builder) validateFilters() error {
	patterns := make([]string, 0, len(b.cfg.Include)+len(b.cfg.Exclude))
	patterns = append(patterns, b.cfg.Include...)
	patterns = append(patterns, b.cfg.Exclude...)
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return errs.ErrInvalidConfig(fmt.Sprintf("invalid path filter %q", pattern))
		}
	}
	return nil
}

func (b *builder) matches(name string) bool {
	if len(b.cfg.Include) > 0 {
		included := false
		for _, pattern := range b.cfg.Include {
			if ok, _ := doublestar.Match(pattern, name); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range b.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return false
		}
	}
	return true
}

// rewritePath strips the configured base dir and prepends the src dir so
// reports merge cleanly across platforms and build layouts.
func (b *builder) rewritePath(name string) string {
	posix := filepath.ToSlash(name)
	if base := sanitizeDir(b.cfg.BaseDir); base != "" && strings.HasPrefix(posix, base) {
		posix = posix[len(base):]
	}
	return sanitizeDir(b.cfg.SrcDir) + posix
}

func sanitizeDir(dir string) string {
	if dir == "" {
		return ""
	}
	dir = filepath.ToSlash(dir)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}

// MergeReportFile appends the source_files of a previously generated report
// to the payload before submission.
func MergeReportFile(payload *core.CoveragePayload, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var extra struct {
		SourceFiles []*core.SourceFile `json:"source_files"`
	}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return err
	}
	if len(extra.SourceFiles) == 0 {
		return errs.New(fmt.Sprintf("no source_files data found in %s", path))
	}
	payload.SourceFiles = append(payload.SourceFiles, extra.SourceFiles...)
	return nil
}
