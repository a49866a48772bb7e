package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// cliArgs holds the command-line arguments
type cliArgs struct {
	Paths      []string `arg:"positional,required" placeholder:"SOURCE... DESTINATION" help:"Source paths followed by the destination path"`
	Move       bool     `arg:"-m,--move" help:"Move files instead of copying them"`
	Force      bool     `arg:"-f,--force" help:"Overwrite files that already exist in the destination"`
	MaxDepth   int      `arg:"--max-depth" help:"Stop after this many directories per source (0 = unlimited)"`
	Exec       string   `arg:"--exec" placeholder:"FILTER" help:"Run FILTER SRC DST for each image instead of copying"`
	ConfigFile string   `arg:"--config" help:"Path to config file"`
	DryRun     bool     `arg:"--dry-run" help:"Show what would be archived without making changes"`
	Verify     bool     `arg:"--verify" help:"Compare checksums of source and copy after copying"`
	Strict     bool     `arg:"--strict" help:"Exit with status 1 if any file could not be archived"`
	Verbose    bool     `arg:"-v,--verbose" help:"Enable verbose output"`
}

func (cliArgs) Description() string {
	return "Copy images into year/month sub-folders by the time they were taken."
}

// config holds the application configuration
type config struct {
	SourceDirs []string `yaml:"-"`
	DestDir    string   `yaml:"destination_directory"`
	ConfigFile string   `yaml:"-"`
	Move       bool     `yaml:"move"`
	Force      bool     `yaml:"force"`
	MaxDepth   int      `yaml:"max_depth"`
	Exec       string   `yaml:"exec"`
	DryRun     bool     `yaml:"dry_run"`
	Verify     bool     `yaml:"verify"`
	Strict     bool     `yaml:"strict"`
	Verbose    bool     `yaml:"verbose"`
}

var errFilesFailed = errors.New("some files could not be archived")

// setDefaults initializes the config with default values
func setDefaults(cfg *config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %v", err)
	}

	cfg.ConfigFile = filepath.Join(homeDir, ".archiveimagesrc")
	cfg.Move = false
	cfg.Force = false
	cfg.MaxDepth = 0
	cfg.Exec = ""
	cfg.DryRun = false
	cfg.Verify = false
	cfg.Strict = false
	cfg.Verbose = false
	return nil
}

// parseConfigFile reads and parses the YAML configuration file
func parseConfigFile(cfg *config) error {
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist, just return without an error
			return nil
		}
		return fmt.Errorf("failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %v", err)
	}

	return nil
}

// applyArgs overrides the config with command-line arguments. Boolean flags
// only take effect when they appear in argv, so config file values survive.
func applyArgs(cfg *config, a cliArgs, argv []string) {
	switch len(a.Paths) {
	case 0:
	case 1:
		cfg.SourceDirs = a.Paths
	default:
		cfg.SourceDirs = a.Paths[:len(a.Paths)-1]
		cfg.DestDir = a.Paths[len(a.Paths)-1]
	}

	if wasFlagProvided(argv, "-m", "--move") {
		cfg.Move = a.Move
	}
	if wasFlagProvided(argv, "-f", "--force") {
		cfg.Force = a.Force
	}
	if wasFlagProvided(argv, "--max-depth") {
		cfg.MaxDepth = a.MaxDepth
	}
	if wasFlagProvided(argv, "--exec") {
		cfg.Exec = a.Exec
	}
	if wasFlagProvided(argv, "--dry-run") {
		cfg.DryRun = a.DryRun
	}
	if wasFlagProvided(argv, "--verify") {
		cfg.Verify = a.Verify
	}
	if wasFlagProvided(argv, "--strict") {
		cfg.Strict = a.Strict
	}
	if wasFlagProvided(argv, "-v", "--verbose") {
		cfg.Verbose = a.Verbose
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *config) error {
	if len(cfg.SourceDirs) == 0 {
		return fmt.Errorf("no source path specified")
	}

	if cfg.DestDir == "" {
		return fmt.Errorf("destination directory is not specified")
	}

	if info, err := os.Stat(cfg.DestDir); err == nil && !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", cfg.DestDir)
	}

	if cfg.MaxDepth < 0 {
		return fmt.Errorf("invalid max depth: %d (must be 0 or more)", cfg.MaxDepth)
	}

	if cfg.Move && cfg.Exec != "" {
		return fmt.Errorf("--move and --exec cannot be used together")
	}

	if cfg.Verify && (cfg.Move || cfg.Exec != "") {
		return fmt.Errorf("--verify only applies when copying")
	}

	return nil
}

// wasFlagProvided checks if any of the named CLI flags was explicitly provided
func wasFlagProvided(argv []string, flagNames ...string) bool {
	for _, a := range argv {
		if a == "--" {
			return false
		}
		for _, flagName := range flagNames {
			if a == flagName || strings.HasPrefix(a, flagName+"=") {
				return true
			}
		}
	}
	return false
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}

func run() error {
	// Create an instance of the config struct
	cfg := config{}

	// Set default values first
	if err := setDefaults(&cfg); err != nil {
		return fmt.Errorf("setting defaults: %w", err)
	}

	// Parse command-line arguments
	var a cliArgs
	arg.MustParse(&a)

	// Apply config file path from command-line argument if provided
	if a.ConfigFile != "" {
		cfg.ConfigFile = a.ConfigFile
	}

	// Parse configuration file
	if err := parseConfigFile(&cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	// Override with command-line arguments
	applyArgs(&cfg, a, os.Args[1:])

	// Validate the configuration
	if err := validateConfig(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg.Verbose)

	result, err := archiveImages(cfg, log)
	if err != nil {
		return fmt.Errorf("archiving images: %w", err)
	}

	return checkResult(cfg, result)
}

// checkResult decides the exit status for a completed run. Per-file failures
// only count in strict mode.
func checkResult(cfg config, result archiveResult) error {
	if cfg.Strict && len(result.Errors) > 0 {
		return fmt.Errorf("%w: %d errors", errFilesFailed, len(result.Errors))
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
