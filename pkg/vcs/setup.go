// Package vcs collects repository metadata for the payload.
package vcs

import (
	"context"
	"os"
	"strings"

	git "github.com/go-git/go-git/v5"
	giturls "github.com/whilp/git-urls"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

// branchVars are checked in order before falling back to the repository HEAD,
// as per the coveralls supported-ci docs.
var branchVars = []string{
	"APPVEYOR_REPO_BRANCH",
	"BUILDKITE_BRANCH",
	"CI_BRANCH",
	"CIRCLE_BRANCH",
	"GIT_BRANCH",
	"TRAVIS_BRANCH",
	"BRANCH_NAME",
}

type collector struct {
	dir    string
	logger lumber.Logger
}

// New returns a GitCollector rooted at dir.
func New(dir string, logger lumber.Logger) core.GitCollector {
	return &collector{dir: dir, logger: logger}
}

// Collect reads the repository at the collector's root. When no repository is
// present (or the checkout is too shallow to resolve HEAD) it degrades to the
// GIT_* environment variables instead of failing.
func (c *collector) Collect(ctx context.Context) *core.GitInfo {
	info, err := c.fromRepository()
	if err != nil {
		c.logger.Warnf("could not read git metadata: %v. Falling back to GIT_* environment variables", err)
		info = fromEnvironment()
	}
	if branch := branchOverride(); branch != "" {
		info.Branch = branch
	}
	return info
}

func (c *collector) fromRepository() (*core.GitInfo, error) {
	repo, err := git.PlainOpenWithOptions(c.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}

	info := &core.GitInfo{
		Head: core.GitHead{
			ID:             head.Hash().String(),
			AuthorName:     commit.Author.Name,
			AuthorEmail:    commit.Author.Email,
			CommitterName:  commit.Committer.Name,
			CommitterEmail: commit.Committer.Email,
			Message:        strings.TrimRight(commit.Message, "\n"),
		},
		Remotes: []core.GitRemote{},
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	remotes, err := repo.Remotes()
	if err != nil {
		return info, nil
	}
	for _, remote := range remotes {
		rc := remote.Config()
		if len(rc.URLs) == 0 {
			continue
		}
		info.Remotes = append(info.Remotes, core.GitRemote{
			Name: rc.Name,
			URL:  StripCredentials(rc.URLs[0]),
		})
	}
	return info, nil
}

// fromEnvironment builds GitInfo from the variables coveralls documents for
// non-git checkouts. Absent variables stay empty rather than erroring.
func fromEnvironment() *core.GitInfo {
	info := &core.GitInfo{
		Head: core.GitHead{
			ID:             os.Getenv("GIT_ID"),
			AuthorName:     os.Getenv("GIT_AUTHOR_NAME"),
			AuthorEmail:    os.Getenv("GIT_AUTHOR_EMAIL"),
			CommitterName:  os.Getenv("GIT_COMMITTER_NAME"),
			CommitterEmail: os.Getenv("GIT_COMMITTER_EMAIL"),
			Message:        os.Getenv("GIT_MESSAGE"),
		},
		Branch:  os.Getenv("GIT_BRANCH"),
		Remotes: []core.GitRemote{},
	}
	if name, url := os.Getenv("GIT_REMOTE"), os.Getenv("GIT_URL"); name != "" && url != "" {
		info.Remotes = append(info.Remotes, core.GitRemote{Name: name, URL: StripCredentials(url)})
	}
	return info
}

// branchOverride resolves the branch from CI variables, which beat the local
// HEAD because CI checkouts are frequently detached.
func branchOverride() string {
	if os.Getenv("GITHUB_ACTIONS") != "" {
		ref := os.Getenv("GITHUB_REF")
		// push and tag events carry the branch in GITHUB_REF, pull_request
		// events in GITHUB_HEAD_REF
		if strings.HasPrefix(ref, "refs/heads/") || strings.HasPrefix(ref, "refs/tags/") {
			return strings.SplitN(ref, "/", 3)[2]
		}
		return os.Getenv("GITHUB_HEAD_REF")
	}
	for _, key := range branchVars {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// StripCredentials removes embedded userinfo from http(s) remote URLs so
// tokens never reach the payload. Other remote formats pass through untouched.
func StripCredentials(remote string) string {
	u, err := giturls.Parse(remote)
	if err != nil {
		return remote
	}
	if u.User == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return remote
	}
	u.User = nil
	return u.String()
}
