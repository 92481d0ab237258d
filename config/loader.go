package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/covclient/coveralls-go/pkg/global"
)

// GlobalCoverallsConfig stores the config instance for global use
var GlobalCoverallsConfig *CoverallsConfig

// repoConfig mirrors the keys users put in .coveralls.yml
type repoConfig struct {
	RepoToken   string `yaml:"repo_token"`
	ServiceName string `yaml:"service_name"`
	FlagName    string `yaml:"flag_name"`
	Parallel    bool   `yaml:"parallel"`
	Host        string `yaml:"coveralls_host"`
}

// LoadConfig loads config from command instance to predefined config variables
func LoadConfig(cmd *cobra.Command) (*CoverallsConfig, error) {
	// local development setups keep their variables in a .env file
	_ = godotenv.Load()

	err := viper.BindPFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}

	// default viper configs
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// set default configs
	setDefaultConfig()

	cfg, err := populateConfig(new(CoverallsConfig))
	if err != nil {
		return nil, err
	}
	if err := mergeRepoConfig(cfg); err != nil {
		return nil, err
	}

	GlobalCoverallsConfig = cfg
	return cfg, nil
}

// mergeRepoConfig folds .coveralls.yml into the config. Flags win over the
// file; the file wins over detected environment values.
func mergeRepoConfig(cfg *CoverallsConfig) error {
	path := cfg.Config
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.RepoRoot, global.ConfigFileName)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return err
	}

	var fileCfg repoConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fmt.Errorf("could not parse %s: %w", path, err)
	}

	if cfg.RepoToken == "" {
		cfg.RepoToken = fileCfg.RepoToken
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = fileCfg.ServiceName
	}
	if cfg.FlagName == "" {
		cfg.FlagName = fileCfg.FlagName
	}
	if fileCfg.Parallel {
		cfg.Parallel = true
	}
	if cfg.Host == "" {
		cfg.Host = fileCfg.Host
	}
	return nil
}

// Validate checks the validity of the config
func Validate(cfg *CoverallsConfig) error {
	if cfg.RepoRoot == "" {
		return fmt.Errorf("repo root cannot be empty")
	}
	if len(cfg.Profiles) == 0 && cfg.Submit == "" && !cfg.Finish {
		return fmt.Errorf("no cover profiles given")
	}
	return nil
}
