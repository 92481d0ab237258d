package main

// this is cmd/root_cmd.go

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/covclient/coveralls-go/config"
	"github.com/covclient/coveralls-go/pkg/cienv"
	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/covengine"
	"github.com/covclient/coveralls-go/pkg/digester"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/pkg/global"
	"github.com/covclient/coveralls-go/pkg/lumber"
	"github.com/covclient/coveralls-go/pkg/reportbuilder"
	"github.com/covclient/coveralls-go/pkg/requestutils"
	"github.com/covclient/coveralls-go/pkg/serializer"
	"github.com/covclient/coveralls-go/pkg/vcs"
)

const binaryVersion = "1.0.0"

// RootCommand will setup and return the root command
func RootCommand() *cobra.Command {
	rootCmd := cobra.Command{
		Use:     "coveralls",
		Long:    `coveralls translates Go cover profiles into coveralls.io reports and submits them`,
		Version: binaryVersion,
		Run:     run,
	}

	// define flags used for this command
	AttachCLIFlags(&rootCmd)

	return &rootCmd
}

func run(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.LoadConfig(cmd)
	if err != nil {
		fmt.Printf("[Error] Failed to load config: %s\n", err.Error())
		os.Exit(global.ExitFailure)
	}

	// patch logconfig file location with root level log file location
	if cfg.LogFile != "" {
		cfg.LogConfig.EnableFile = true
		cfg.LogConfig.FileLocation = filepath.Join(cfg.LogFile, "coveralls.log")
	}

	// You can also use logrus implementation
	// by using lumber.InstanceLogrusLogger
	logger, err := lumber.NewLogger(cfg.LogConfig, cfg.Verbose, lumber.InstanceZapLogger)
	if err != nil {
		log.Fatalf("Could not instantiate logger %s", err.Error())
	}

	if err := config.Validate(cfg); err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(global.ExitFailure)
	}

	os.Exit(execute(ctx, cfg, logger))
}

func execute(ctx context.Context, cfg *config.CoverallsConfig, logger lumber.Logger) int {
	detector := cienv.New(logger)
	ciCtx := detector.Detect()

	host := firstNonEmpty(cfg.Host, ciCtx.Host, global.DefaultCoverallsHost)
	requests := requestutils.New(logger, host, global.DefaultAPITimeout, func() backoff.BackOff {
		return backoff.NewExponentialBackOff()
	})

	if cfg.Finish {
		token := firstNonEmpty(cfg.RepoToken, ciCtx.RepoToken)
		return finish(ctx, requests, logger, token, ciCtx.BuildNumber, os.Getenv("GITHUB_REPOSITORY"))
	}

	if cfg.Submit != "" {
		report, err := os.ReadFile(cfg.Submit)
		if err != nil {
			logger.Errorf("Could not read report file %s: %v", cfg.Submit, err)
			return global.ExitFailure
		}
		return submit(ctx, requests, logger, host, report)
	}

	// a missing token aborts before any coverage is gathered; dry runs and
	// file output never reach the API, so they don't need one
	tokenRequired := ciCtx.TokenRequired && !cfg.DryRun && cfg.Output == ""
	if tokenRequired && firstNonEmpty(cfg.RepoToken, ciCtx.RepoToken) == "" {
		logger.Errorf("%v", errs.ErrMissingToken(ciCtx.Provider == core.ProviderGithub))
		return global.ExitFailure
	}

	engine, err := covengine.New(logger, cfg.RepoRoot, cfg.Profiles...)
	if err != nil {
		logger.Errorf("Could not load cover profiles: %v", err)
		return global.ExitFailure
	}

	builder := reportbuilder.New(cfg, engine, digester.New(logger), vcs.New(cfg.RepoRoot, logger), detector, logger)
	payload, err := builder.Build(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrNoCoverageData) {
			logger.Errorf("No coverage data found, nothing to report")
			return global.ExitNoCoverageData
		}
		logger.Errorf("Could not build coverage report: %v", err)
		return global.ExitFailure
	}
	for _, skip := range payload.Skipped {
		logger.Warnf("skipped %s: %s", skip.Name, skip.Reason)
	}

	if cfg.Merge != "" {
		if err := reportbuilder.MergeReportFile(payload, cfg.Merge); err != nil {
			logger.Errorf("Could not merge report from %s: %v", cfg.Merge, err)
			return global.ExitFailure
		}
	}

	report, err := serializer.New(logger).Marshal(payload)
	if err != nil {
		logger.Errorf("Could not serialize coverage report: %v", err)
		return global.ExitFailure
	}
	logger.Debugf("report payload: %s", serializer.Redact(report))

	if pct := payload.CoveragePercent(); pct != nil {
		logger.Infof("Reporting %d files, %.1f%% covered", len(payload.SourceFiles), *pct)
	} else {
		logger.Infof("Reporting %d files, no executable lines found", len(payload.SourceFiles))
	}

	if cfg.DryRun {
		fmt.Println(string(report))
		return global.ExitSuccess
	}
	if cfg.Output != "" {
		logger.Infof("Writing coverage report to %s...", cfg.Output)
		if err := os.WriteFile(cfg.Output, report, 0o644); err != nil {
			logger.Errorf("Could not write report: %v", err)
			return global.ExitFailure
		}
		return global.ExitSuccess
	}

	return submit(ctx, requests, logger, host, report)
}

func finish(ctx context.Context, requests core.Requests, logger lumber.Logger, token, buildNum, repoName string) int {
	logger.Infof("Finishing parallel jobs...")
	if err := requests.ParallelFinish(ctx, token, buildNum, repoName); err != nil {
		var subErr *errs.SubmissionError
		if errors.As(err, &subErr) || errors.Is(err, errs.ErrParallelFinish) {
			logger.Errorf("Parallel finish rejected: %v", err)
			return global.ExitSubmissionRejected
		}
		logger.Errorf("Parallel finish failed: %v", err)
		return global.ExitFailure
	}
	logger.Infof("Done")
	return global.ExitSuccess
}

func submit(ctx context.Context, requests core.Requests, logger lumber.Logger, host string, report []byte) int {
	logger.Infof("Submitting coverage to %s...", host)
	resp, err := requests.SubmitReport(ctx, report)
	if err != nil {
		var subErr *errs.SubmissionError
		if errors.As(err, &subErr) {
			logger.Errorf("Submission rejected: %v", err)
			return global.ExitSubmissionRejected
		}
		logger.Errorf("Could not submit coverage: %v", err)
		return global.ExitFailure
	}

	logger.Infof("Coverage submitted!")
	if resp.Message != "" {
		logger.Infof("%s", resp.Message)
	}
	if resp.URL != "" {
		logger.Infof("%s", resp.URL)
	}
	return global.ExitSuccess
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
