package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/birucan/lawcite"
)

var (
	configPath string
	envFile    string
	logLevel   string
	logFormat  string

	cfg lawcite.Config
)

var rootCmd = &cobra.Command{
	Use:   "lawcite",
	Short: "Section legal documents and answer questions with citations",
	Long: `lawcite splits legal documents (PDF, XLSX, text) into labelled sections,
indexes them in an in-memory vector store and answers questions with
numbered citations back to the retrieved text.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		return setupLogging(cmd.ErrOrStderr())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading LAWCITE_* variables")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// loadConfig layers defaults, the YAML file, the dotenv file and the
// process environment, in that order.
func loadConfig() (lawcite.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return lawcite.Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	c := lawcite.DefaultConfig()
	if configPath != "" {
		var err error
		if c, err = lawcite.LoadConfig(configPath); err != nil {
			return lawcite.Config{}, err
		}
	}
	c.ApplyEnv()
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	return c, c.Validate()
}

func setupLogging(w io.Writer) error {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(logFormat) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", lawcite.ErrInvalidConfig, s)
	}
	return l, nil
}
