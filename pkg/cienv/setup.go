// Package cienv detects the active CI provider from environment variables.
package cienv

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/global"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

var prNumberRegex = regexp.MustCompile(`(\d+)$`)

type providerDetector struct {
	provider core.CIProvider
	// signal must be present and non-empty for the detector to fire
	signal string
	detect func(ctx *core.CIContext)
}

// detectors is a strict precedence order, not a best match search: some
// environments set variables belonging to several providers' conventions, so
// the first matching signal wins. Changing this order is a behavioral break
// for existing CI setups.
var detectors = []providerDetector{
	{core.ProviderAppVeyor, "APPVEYOR", detectAppVeyor},
	{core.ProviderBuildkite, "BUILDKITE", detectBuildkite},
	{core.ProviderCircleCI, "CIRCLECI", detectCircle},
	{core.ProviderGithub, "GITHUB_ACTIONS", detectGithub},
	{core.ProviderJenkins, "JENKINS_HOME", detectJenkins},
	{core.ProviderTravis, "TRAVIS", detectTravis},
	{core.ProviderSemaphore, "SEMAPHORE", detectSemaphore},
}

type detector struct {
	logger lumber.Logger
	once   sync.Once
	ctx    *core.CIContext
}

// New returns a CIDetector. Detection runs once; every later call returns the
// same context.
func New(logger lumber.Logger) core.CIDetector {
	return &detector{logger: logger}
}

func (d *detector) Detect() *core.CIContext {
	d.once.Do(func() {
		d.ctx = detect(d.logger)
	})
	return d.ctx
}

func detect(logger lumber.Logger) *core.CIContext {
	ctx := &core.CIContext{
		Provider:      core.ProviderNone,
		ServiceName:   global.UnknownServiceName,
		TokenRequired: true,
	}

	// generic CI_* variables load first so provider detectors can overwrite
	// the specifics
	applyGeneric(ctx)

	for i := range detectors {
		if os.Getenv(detectors[i].signal) == "" {
			continue
		}
		ctx.Provider = detectors[i].provider
		if ctx.ServiceName == global.UnknownServiceName {
			ctx.ServiceName = string(detectors[i].provider)
		}
		detectors[i].detect(ctx)
		logger.Debugf("detected CI provider %s", ctx.Provider)
		break
	}

	applyOverrides(ctx)
	return ctx
}

// applyGeneric loads the variables any CI may set, per the coveralls
// supported-ci-services docs.
func applyGeneric(ctx *core.CIContext) {
	setIfPresent(&ctx.ServiceName, "CI_NAME")
	setIfPresent(&ctx.BuildNumber, "CI_BUILD_NUMBER")
	setIfPresent(&ctx.BuildURL, "CI_BUILD_URL")
	setIfPresent(&ctx.JobID, "CI_JOB_ID")
	setIfPresent(&ctx.Branch, "CI_BRANCH")
	if m := prNumberRegex.FindString(os.Getenv("CI_PULL_REQUEST")); m != "" {
		ctx.PullRequest = m
	}
}

func detectAppVeyor(ctx *core.CIContext) {
	setIfPresent(&ctx.JobID, "APPVEYOR_BUILD_ID")
	setIfPresent(&ctx.PullRequest, "APPVEYOR_PULL_REQUEST_NUMBER")
}

func detectBuildkite(ctx *core.CIContext) {
	setIfPresent(&ctx.JobID, "BUILDKITE_JOB_ID")
	// buildkite sets the literal string "false" outside pull requests
	if pr := os.Getenv("BUILDKITE_PULL_REQUEST"); pr != "" && pr != "false" {
		ctx.PullRequest = pr
	}
}

func detectCircle(ctx *core.CIContext) {
	if number := os.Getenv("CIRCLE_WORKFLOW_ID"); number != "" {
		ctx.BuildNumber = number
	} else {
		setIfPresent(&ctx.BuildNumber, "CIRCLE_BUILD_NUM")
	}
	setIfPresent(&ctx.JobID, "CIRCLE_NODE_INDEX")
	if pr := lastSegment(os.Getenv("CI_PULL_REQUEST")); pr != "" {
		ctx.PullRequest = pr
	}
}

func detectGithub(ctx *core.CIContext) {
	// identifying the repo by its GITHUB_TOKEN is the stable flow for actions
	setIfPresent(&ctx.RepoToken, "GITHUB_TOKEN")
	if ref := os.Getenv("GITHUB_REF"); strings.HasPrefix(ref, "refs/pull/") {
		ctx.PullRequest = strings.Split(ref, "/")[2]
	}
	setIfPresent(&ctx.JobID, "GITHUB_RUN_ID")
	setIfPresent(&ctx.BuildNumber, "GITHUB_RUN_ID")
}

func detectJenkins(ctx *core.CIContext) {
	setIfPresent(&ctx.JobID, "BUILD_NUMBER")
	if pr := lastSegment(os.Getenv("CI_PULL_REQUEST")); pr != "" {
		ctx.PullRequest = pr
	}
}

func detectTravis(ctx *core.CIContext) {
	// coveralls identifies travis jobs without a repo token
	ctx.TokenRequired = false
	setIfPresent(&ctx.JobID, "TRAVIS_JOB_ID")
	setIfPresent(&ctx.PullRequest, "TRAVIS_PULL_REQUEST")
}

func detectSemaphore(ctx *core.CIContext) {
	// classic sets the *_UUID variables, 2.0 the *_ID ones
	if job := os.Getenv("SEMAPHORE_JOB_UUID"); job != "" {
		ctx.JobID = job
	} else {
		setIfPresent(&ctx.JobID, "SEMAPHORE_JOB_ID")
	}
	if number := os.Getenv("SEMAPHORE_EXECUTABLE_UUID"); number != "" {
		ctx.BuildNumber = number
	} else {
		setIfPresent(&ctx.BuildNumber, "SEMAPHORE_WORKFLOW_ID")
	}
	if pr := os.Getenv("SEMAPHORE_BRANCH_ID"); pr != "" {
		ctx.PullRequest = pr
	} else {
		setIfPresent(&ctx.PullRequest, "SEMAPHORE_GIT_PR_NUMBER")
	}
}

// applyOverrides applies the COVERALLS_* variables, which beat any detected
// value regardless of provider.
func applyOverrides(ctx *core.CIContext) {
	setIfPresent(&ctx.Host, "COVERALLS_HOST")
	setIfPresent(&ctx.RepoToken, "COVERALLS_REPO_TOKEN")
	setIfPresent(&ctx.FlagName, "COVERALLS_FLAG_NAME")
	setIfPresent(&ctx.JobID, "COVERALLS_SERVICE_JOB_ID")
	setIfPresent(&ctx.JobNumber, "COVERALLS_SERVICE_JOB_NUMBER")
	setIfPresent(&ctx.ServiceName, "COVERALLS_SERVICE_NAME")
	setIfPresent(&ctx.BuildNumber, "COVERALLS_SERVICE_NUMBER")
	if strings.EqualFold(os.Getenv("COVERALLS_PARALLEL"), "true") {
		ctx.Parallel = true
	}
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func lastSegment(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "/")
	return parts[len(parts)-1]
}
