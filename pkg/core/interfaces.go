package core

import (
	"context"
)

// CoverageEngine is the read-only boundary to the coverage measurement tool.
// The report builder depends only on this interface, never on a concrete
// profile format.
type CoverageEngine interface {
	// EnumerateFiles returns the repo-relative paths of every tracked file.
	EnumerateFiles() []string
	// FileCoverage returns the recorded line and branch hits for a tracked file.
	FileCoverage(name string) (*FileCoverage, error)
}

// SourceDigester produces a SourceFile record from the working tree and the
// engine's recorded hits.
type SourceDigester interface {
	Digest(path, name string, cov *FileCoverage) (*SourceFile, error)
}

// GitCollector gathers repository metadata for the payload.
type GitCollector interface {
	// Collect never fails; outside a repository it degrades to the fields
	// derivable from CI environment variables.
	Collect(ctx context.Context) *GitInfo
}

// CIDetector classifies the CI environment exactly once per run.
type CIDetector interface {
	Detect() *CIContext
}

// ReportBuilder assembles the complete coverage payload.
type ReportBuilder interface {
	Build(ctx context.Context) (*CoveragePayload, error)
}

// Serializer converts a payload to the wire JSON document.
type Serializer interface {
	Marshal(p *CoveragePayload) ([]byte, error)
}

// Requests performs calls to the coveralls API.
type Requests interface {
	// SubmitReport uploads a serialized report to the jobs endpoint.
	SubmitReport(ctx context.Context, report []byte) (*APIResponse, error)
	// ParallelFinish fires the done webhook for parallel builds.
	ParallelFinish(ctx context.Context, repoToken, buildNum, repoName string) error
}
