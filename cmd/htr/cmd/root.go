package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/gohtr/internal/config"
	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration, reloaded before every command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Flags bound to configuration keys, applied to a fresh viper on every load.
	flagBindings []flagBinding
)

type flagBinding struct {
	key  string
	flag *pflag.Flag
}

// bindFlag registers flag as the command-line source of a configuration key.
func bindFlag(key string, flag *pflag.Flag) {
	flagBindings = append(flagBindings, flagBinding{key: key, flag: flag})
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "htr",
	Short: "Handwritten text recognition for single words",
	Long: `A handwritten text recognizer for isolated English words. It trains a
convolutional and recurrent network with CTC loss on an IAM-style dataset,
validates it, and recognizes single word images.

Examples:
  htr train --data-dir data/iam --model-dir model
  htr validate --data-dir data/iam
  htr infer word.png
  htr config show`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			printVersion(cmd)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/htr, /etc/htr)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("model-dir", models.DefaultModelDir,
		"directory holding charList.txt, snapshots and summary.json (also HTR_MODEL_DIR)")
	rootCmd.PersistentFlags().String("data-dir", models.DefaultDataDir,
		"dataset root containing gt/words.txt and images/")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	bindFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	bindFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("model_dir", rootCmd.PersistentFlags().Lookup("model-dir"))
	bindFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		setupLogging(cmd, globalConfig)
		return nil
	}
}

// setupLogging installs a JSON slog handler at the configured level.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	v := viper.New()
	for _, b := range flagBindings {
		if err := v.BindPFlag(b.key, b.flag); err != nil {
			return fmt.Errorf("failed to bind flag for %s: %w", b.key, err)
		}
	}
	configLoader = config.NewLoaderWithViper(v)

	var err error
	globalConfig, err = configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		GetConfig()
	}
	return configLoader
}

func printVersion(cmd *cobra.Command) {
	v, commit, date := version.Info()
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "htr version %s\n", v)
	_, _ = fmt.Fprintf(out, "Commit: %s\n", commit)
	_, _ = fmt.Fprintf(out, "Date: %s\n", date)
}
