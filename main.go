// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/readaloud/internal/store"
	"github.com/dgnsrekt/readaloud/utils"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "readaloud",
		Short: "Read your saved articles out loud",
		Long: paragraph(
			fmt.Sprintf("\nQueue bookmarks and documents, then %s one after another.", keyword("listen to them")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOptions()
		},
	}
)

func validateOptions() error {
	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	tag, err := language.Parse(viper.GetString("speech.language"))
	if err != nil {
		return fmt.Errorf("invalid speech.language %q: %w", viper.GetString("speech.language"), err)
	}
	viper.Set("speech.language", tag.String())

	switch driver := strings.ToLower(viper.GetString("store.driver")); driver {
	case store.DriverFile, store.DriverSQLite, store.DriverRedis, store.DriverMemory:
	default:
		return fmt.Errorf("%w: %q", store.ErrUnknownDriver, driver)
	}

	switch engine := strings.ToLower(viper.GetString("speech.engine")); engine {
	case engineMock:
	case enginePiper:
		if viper.GetString("speech.piper.model") == "" {
			return errors.New("speech.piper.model is required for the piper engine")
		}
		model := utils.ExpandPath(viper.GetString("speech.piper.model"))
		if _, err := os.Stat(model); err != nil {
			return fmt.Errorf("piper model: %w", err)
		}
	default:
		return fmt.Errorf("unknown speech engine %q: use %s or %s", engine, engineMock, enginePiper)
	}

	if r := viper.GetInt("speech.piper.sample_rate"); r <= 0 {
		return fmt.Errorf("speech.piper.sample_rate must be positive, got %d", r)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	loadDotEnv()
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
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug messages")
	rootCmd.PersistentFlags().String("store", "", "queue store: file, sqlite, redis or memory")
	rootCmd.PersistentFlags().String("engine", "", "speech engine: mock or piper")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("speech.engine", rootCmd.PersistentFlags().Lookup("engine"))

	setDefaults()

	rootCmd.AddCommand(configCmd, manCmd, playCmd, runCmd, listCmd, showCmd, clearCmd, settingsCmd)
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("store.driver", store.DriverFile)
	viper.SetDefault("store.path", "")
	viper.SetDefault("store.namespace", store.DefaultNamespace)
	viper.SetDefault("store.redis.addr", "localhost:6379")
	viper.SetDefault("store.redis.password", "")
	viper.SetDefault("store.redis.db", 0)
	viper.SetDefault("store.redis.ttl", "0s")

	viper.SetDefault("speech.engine", engineMock)
	viper.SetDefault("speech.language", "en-US")
	viper.SetDefault("speech.piper.binary", "")
	viper.SetDefault("speech.piper.model", "")
	viper.SetDefault("speech.piper.speaker", "")
	viper.SetDefault("speech.piper.sample_rate", 22050)
	viper.SetDefault("speech.piper.timeout", "1m")
	viper.SetDefault("speech.piper.chunk_chars", 400)
	viper.SetDefault("speech.mock.words_per_minute", 150)
	viper.SetDefault("speech.cache.dir", "")
	viper.SetDefault("speech.cache.memory_mb", 32)
	viper.SetDefault("speech.cache.disk_mb", 256)

	viper.SetDefault("watch.dir", "")
	viper.SetDefault("metrics.addr", "")
}

// loadDotEnv loads a .env file into the environment before the
// configuration is read, so READALOUD_* variables can live there.
func loadDotEnv() {
	cfg, err := parseEnv()
	if err != nil {
		log.Warn("Could not parse environment", "err", err)
		return
	}
	if err := godotenv.Load(cfg.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not load env file", "path", cfg.DotEnv, "err", err)
	}
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, utils.AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, utils.AppName)}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(utils.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(utils.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], utils.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
