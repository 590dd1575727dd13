package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	Output     string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/mediatidy/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"print one line per planned action",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
	cmd.PersistentFlags().StringVarP(
		&globalFlags.Output,
		"output",
		"o",
		"",
		"output format: human, json (default from config)",
	)
	cmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.PersistentFlags().StringVar(&globalFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// addRunFlags registers the flags shared by sort and dedup
func addRunFlags(cmd *cobra.Command, rf *runFlags) {
	cmd.Flags().BoolVar(&rf.DryRun, "dry-run", false, "plan and report only, don't touch any file")
	cmd.Flags().IntVarP(&rf.Parallel, "parallel", "p", 0, "number of parallel workers (default: 5)")
	cmd.Flags().StringSliceVar(&rf.Exclude, "exclude", []string{}, "glob patterns to exclude")
	cmd.Flags().StringVar(&rf.Report, "report", "", "write every planned action to file")
	cmd.Flags().StringVar(&rf.ReportFormat, "report-format", "human", "actions report format: human, json")
}

// runFlags holds the flags every pipeline command accepts
type runFlags struct {
	DryRun       bool
	Parallel     int
	Exclude      []string
	Report       string
	ReportFormat string
}
