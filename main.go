// Package main provides the entry point for the nafaa CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/ibnnafaa/nafaa/internal/config"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	reciter    string
	quality    string
	debug      bool

	// cfg is loaded before any command runs.
	cfg      config.Config
	logClose = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "nafaa",
		Short: "Listen to Quran recitations, online or offline",
		Long: paragraph(
			fmt.Sprintf("\nListen to Quran recitations %s. Audio is cached as you listen, or ahead of time with download-all.", keyword("online or offline")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	closer, err := setupLog(cfg.Debug, cfg.LogFile)
	if err != nil {
		return err
	}
	logClose = closer

	log.Debug("Configuration loaded",
		"file", viper.ConfigFileUsed(),
		"reciter", cfg.Reciter,
		"quality", cfg.Quality,
		"cache", cfg.Cache.Dir)
	return nil
}

func main() {
	err := rootCmd.Execute()
	_ = logClose()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&reciter, "reciter", "r", "", "reciter key or name")
	rootCmd.PersistentFlags().StringVarP(&quality, "quality", "q", "", "audio quality in kbps, e.g. 64 or 128")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to stderr and the log file")

	// Config bindings
	_ = viper.BindPFlag("reciter", rootCmd.PersistentFlags().Lookup("reciter"))
	_ = viper.BindPFlag("quality", rootCmd.PersistentFlags().Lookup("quality"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(
		playCmd,
		downloadCmd,
		downloadAllCmd,
		clearCacheCmd,
		statusCmd,
		recitersCmd,
		configCmd,
		manCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}

	if c := os.Getenv("NAFAA_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
