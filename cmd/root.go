// Package cmd wires cartog's cobra command tree: one subcommand per query
// or indexing operation, all sharing the same viper-bound Config and a
// store opened lazily by each command.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartogr/cartog/internal/config"
	"github.com/cartogr/cartog/internal/logger"
)

// version is set via ldflags at build time:
// -ldflags "-X github.com/cartogr/cartog/cmd.version=1.0.0"
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cartog",
	Short: "cartog - local code graph indexer and query engine",
	Long: `cartog parses a source tree into a symbol/edge graph, persists it in an
embedded store, and answers structural and hybrid lexical/semantic
queries over it.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to rootCmd and runs it. Called by main().
func Execute() {
	initCrashHandler()
	defer logger.HandlePanic()

	rootCmd.SuggestionsMinimumDistance = 2
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCrashHandler() {
	logger.SetVersion(version)
	if len(os.Args) > 1 {
		logger.SetCommand(fmt.Sprintf("%v", os.Args[1:]))
	}
}

func init() {
	cobra.OnInitialize(initViperConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .cartog.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "directory to index/query")

	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

// initViperConfig installs defaults, an optional .cartog.yaml config file,
// and CARTOG_-prefixed environment variables; together with the flags bound
// in init, viper resolves flag > env > config file > default.
func initViperConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".cartog")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CARTOG")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func jsonOutput() bool {
	return viper.GetBool("json")
}

func rootDir() string {
	return viper.GetString("root")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
