// Package runnercli implements runnerctl's command tree: run, env (list,
// add, wizard), stop/kill, and recover.
//
// Grounded on internal/cli/root.go's cobra root-command wiring (persistent
// --config flag, viper.AutomaticEnv with an env prefix, cobra.OnInitialize).
package runnercli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/midoriai/agents-runner/internal/version"

	_ "github.com/midoriai/agents-runner/internal/agent/aider"
	_ "github.com/midoriai/agents-runner/internal/agent/claudecode"
	_ "github.com/midoriai/agents-runner/internal/agent/codex"
	_ "github.com/midoriai/agents-runner/internal/agent/copilot"
	_ "github.com/midoriai/agents-runner/internal/agent/gemini"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "runnerctl",
	Short: "Launch and supervise containerized coding-agent tasks",
	Long: `runnerctl launches AI coding agent CLIs (Claude Code, Codex, Copilot
CLI, Gemini CLI, Aider) inside isolated containers, supervises their
lifecycle through retries and agent fallback, and finalizes completed runs
-- draining artifacts and optionally opening a pull request.

Example:
  runnerctl run --env demo --prompt "add a README"`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .runnerctl.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "override the runner data directory")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".runnerctl")
	}

	viper.SetEnvPrefix("RUNNERCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
