package main

import (
	"github.com/spf13/cobra"
)

// AttachCLIFlags attaches command line flags to command
func AttachCLIFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().StringP("config", "c", "", "the config file to use")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Run in verbose mode")
	rootCmd.PersistentFlags().String("logfile", "", "Directory to write the log file to")

	rootCmd.PersistentFlags().StringSlice("profiles", nil, "Cover profile files to report")
	rootCmd.PersistentFlags().String("repoRoot", ".", "Root of the repository the profiles were recorded in")
	rootCmd.PersistentFlags().String("basedir", "", "Base directory that is removed from reported paths")
	rootCmd.PersistentFlags().String("srcdir", "", "Source directory added to reported paths")
	rootCmd.PersistentFlags().StringSlice("include", nil, "Glob patterns of files to report")
	rootCmd.PersistentFlags().StringSlice("exclude", nil, "Glob patterns of files to leave out")

	rootCmd.PersistentFlags().String("service_name", "", "Alternative CI service name to submit")
	rootCmd.PersistentFlags().String("repo_token", "", "The secret repo token from your coveralls repo page")
	rootCmd.PersistentFlags().String("flag_name", "", "Job flag name shown on the coveralls build page")
	rootCmd.PersistentFlags().Bool("parallel", false, "Mark this run as one shard of a parallel build")
	rootCmd.PersistentFlags().String("host", "", "Alternative coveralls host")

	rootCmd.PersistentFlags().Bool("dryRun", false, "Print the report json to stdout, send nothing")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Write report to file, send nothing")
	rootCmd.PersistentFlags().String("submit", "", "Upload a previously generated report file")
	rootCmd.PersistentFlags().String("merge", "", "Merge report from file when submitting")
	rootCmd.PersistentFlags().Bool("finish", false, "Finish parallel jobs")

	return nil
}
