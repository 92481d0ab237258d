package config

import "github.com/covclient/coveralls-go/pkg/lumber"

// Model definition for configuration

// CoverallsConfig is the application's configuration
type CoverallsConfig struct {
	Config    string
	LogFile   string
	LogConfig lumber.LoggingConfig
	Verbose   bool

	// Run modes
	DryRun bool   `json:"dryRun"`
	Output string `json:"output"`
	Submit string `json:"submit"`
	Merge  string `json:"merge"`
	Finish bool   `json:"finish"`

	// Coverage input
	Profiles []string `json:"profiles"`
	RepoRoot string   `json:"repoRoot"`
	BaseDir  string   `json:"basedir"`
	SrcDir   string   `json:"srcdir"`
	Include  []string `json:"include"`
	Exclude  []string `json:"exclude"`

	// Explicit service overrides; these always win over detection
	ServiceName string `json:"service_name" yaml:"service_name"`
	RepoToken   string `json:"repo_token" yaml:"repo_token"`
	FlagName    string `json:"flag_name" yaml:"flag_name"`
	Parallel    bool   `json:"parallel"`
	Host        string `json:"host"`
}
