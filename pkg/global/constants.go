package global

import "time"

// All constants for the coveralls client
const (
	DefaultCoverallsHost = "https://coveralls.io"
	JobsEndpoint         = "/api/v1/jobs"
	WebhookEndpoint      = "/webhook"
	DefaultAPITimeout    = 45 * time.Second
	DefaultProfile       = "coverage.out"
	ConfigFileName       = ".coveralls.yml"
	// RunAtLayout is the timestamp format the coveralls API expects in run_at.
	RunAtLayout = "2006-01-02 15:04:05 -0700"
	// UnknownServiceName is reported when no CI provider is detected.
	UnknownServiceName = "coveralls-go"
)

// Exclusion markers recognized by the source digester. A line carrying the
// single marker, or any line inside a start/end block, is excluded from
// coverage regardless of recorded hits.
const (
	ExcludeMarker     = "coverage:ignore"
	ExcludeBlockStart = "coverage:ignore-start"
	ExcludeBlockEnd   = "coverage:ignore-end"
)

// Process exit codes.
const (
	ExitSuccess            = 0
	ExitFailure            = 1
	ExitNoCoverageData     = 2
	ExitSubmissionRejected = 3
)

// SkipSSLVerifyEnv disables TLS verification on API calls when set.
const SkipSSLVerifyEnv = "COVERALLS_SKIP_SSL_VERIFY"
