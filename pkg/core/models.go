// Package core is the backbone of the coveralls client, it defines the
// models shared across the pipeline and the contracts between its stages.
package core

// LineState classifies a single source line for coverage purposes.
type LineState int8

// Coverage line states.
const (
	// NotCode marks lines the measurement engine considers non-executable.
	NotCode LineState = iota
	// Covered marks executable lines hit at least once.
	Covered
	// Uncovered marks executable lines never hit.
	Uncovered
	// Excluded marks lines matched by an exclusion marker. Exclusion wins
	// over recorded hits.
	Excluded
)

// BranchArc is one recorded branch destination for a source line.
type BranchArc struct {
	Line   int
	Block  int
	Branch int
	Hits   int
}

// FileCoverage is the measurement engine's view of a single file.
type FileCoverage struct {
	Name string
	// Statements is the set of executable line numbers.
	Statements map[int]bool
	// Hits maps executed line numbers to their hit counts.
	Hits map[int]int
	// Branches holds optional branch data. Every arc's source line must lie
	// within the file's line range.
	Branches []BranchArc
}

// SourceFile is one entry of the wire payload's source_files array.
// Coverage holds one element per line of the normalized source: a positive
// hit count, 0 for a miss, null for excluded and non-code lines.
type SourceFile struct {
	Name         string `json:"name"`
	Source       string `json:"source"`
	SourceDigest string `json:"source_digest"`
	Coverage     []*int `json:"coverage"`
	// Branches is a flat list of (line, block, branch, hits) quadruples.
	Branches []int `json:"branches,omitempty"`

	// States mirrors Coverage with the richer line classification, used for
	// summary math. Not part of the wire format.
	States []LineState `json:"-"`
}

// CoveredLines counts executable lines hit at least once.
func (s *SourceFile) CoveredLines() int {
	count := 0
	for _, state := range s.States {
		if state == Covered {
			count++
		}
	}
	return count
}

// RelevantLines counts lines that enter the percentage computation, i.e.
// covered plus uncovered. Excluded and non-code lines are not relevant.
func (s *SourceFile) RelevantLines() int {
	count := 0
	for _, state := range s.States {
		if state == Covered || state == Uncovered {
			count++
		}
	}
	return count
}

// GitHead describes the HEAD commit.
type GitHead struct {
	ID             string `json:"id"`
	AuthorName     string `json:"author_name"`
	AuthorEmail    string `json:"author_email"`
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`
	Message        string `json:"message"`
}

// GitRemote is one configured remote with a credential-free URL.
type GitRemote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// GitInfo is the git object of the wire payload.
type GitInfo struct {
	Head    GitHead     `json:"head"`
	Branch  string      `json:"branch"`
	Remotes []GitRemote `json:"remotes"`
}

// CIProvider tags the detected CI platform. The set is closed.
type CIProvider string

// Recognized CI providers, in detection precedence order.
const (
	ProviderAppVeyor  CIProvider = "appveyor"
	ProviderBuildkite CIProvider = "buildkite"
	ProviderCircleCI  CIProvider = "circleci"
	ProviderGithub    CIProvider = "github"
	ProviderJenkins   CIProvider = "jenkins"
	ProviderTravis    CIProvider = "travis-ci"
	ProviderSemaphore CIProvider = "semaphore-ci"
	ProviderNone      CIProvider = "none"
)

// CIContext carries everything detected from the CI environment. Exactly one
// provider is selected per run.
type CIContext struct {
	Provider    CIProvider
	ServiceName string
	JobID       string
	JobNumber   string
	BuildNumber string
	BuildURL    string
	Branch      string
	PullRequest string
	RepoToken   string
	FlagName    string
	Host        string
	// Parallel marks this run as one shard among several; the service defers
	// aggregation until the done webhook fires.
	Parallel bool
	// TokenRequired is false on providers coveralls identifies without a
	// repo token.
	TokenRequired bool
}

// SkippedFile records a file dropped from the report with the reason.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// CoveragePayload is the root object posted to the jobs endpoint. It is
// constructed fresh per invocation and discarded after transport.
type CoveragePayload struct {
	RepoToken          string        `json:"repo_token,omitempty"`
	ServiceName        string        `json:"service_name,omitempty"`
	ServiceJobID       string        `json:"service_job_id,omitempty"`
	ServiceJobNumber   string        `json:"service_job_number,omitempty"`
	ServiceNumber      string        `json:"service_number,omitempty"`
	ServiceBuildURL    string        `json:"service_build_url,omitempty"`
	ServiceBranch      string        `json:"service_branch,omitempty"`
	ServicePullRequest string        `json:"service_pull_request,omitempty"`
	FlagName           string        `json:"flag_name,omitempty"`
	Parallel           bool          `json:"parallel,omitempty"`
	RunAt              string        `json:"run_at"`
	Git                *GitInfo      `json:"git,omitempty"`
	SourceFiles        []*SourceFile `json:"source_files"`

	// Skipped surfaces files that failed digesting. Not submitted.
	Skipped []SkippedFile `json:"-"`
}

// CoveragePercent returns the aggregate percentage of covered lines over
// relevant lines, or nil when the payload has no relevant lines.
func (p *CoveragePayload) CoveragePercent() *float64 {
	covered, relevant := 0, 0
	for _, sf := range p.SourceFiles {
		covered += sf.CoveredLines()
		relevant += sf.RelevantLines()
	}
	if relevant == 0 {
		return nil
	}
	percent := 100 * float64(covered) / float64(relevant)
	return &percent
}

// APIResponse is the json body returned by the coveralls API.
type APIResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	Error   bool   `json:"error"`
}
