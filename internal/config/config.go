package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"drift/internal/errors"
)

// Config represents the complete drift engine configuration.
// Layering: CLI flags > DRIFT_* env > project drift.toml > user config > defaults.
type Config struct {
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot" toml:"projectRoot"`

	Scan     ScanConfig     `json:"scan" mapstructure:"scan" toml:"scan"`
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis" toml:"analysis"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage" toml:"storage"`
	Learning LearningConfig `json:"learning" mapstructure:"learning" toml:"learning"`
	Backup   BackupConfig   `json:"backup" mapstructure:"backup" toml:"backup"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" toml:"logging"`
}

// ScanConfig controls the file scanner.
type ScanConfig struct {
	Workers         int      `json:"workers" mapstructure:"workers" toml:"workers"`
	MaxFileSize     int64    `json:"maxFileSize" mapstructure:"maxFileSize" toml:"maxFileSize"`
	IgnoreFile      string   `json:"ignoreFile" mapstructure:"ignoreFile" toml:"ignoreFile"`
	ExcludePatterns []string `json:"excludePatterns" mapstructure:"excludePatterns" toml:"excludePatterns"`
	IncludeTests    bool     `json:"includeTests" mapstructure:"includeTests" toml:"includeTests"`
}

// AnalysisConfig controls detection and graph analysis.
type AnalysisConfig struct {
	PatternsFile       string  `json:"patternsFile" mapstructure:"patternsFile" toml:"patternsFile"`
	TaintRegistryFile  string  `json:"taintRegistryFile" mapstructure:"taintRegistryFile" toml:"taintRegistryFile"`
	FuzzyThreshold     float64 `json:"fuzzyThreshold" mapstructure:"fuzzyThreshold" toml:"fuzzyThreshold"`
	MaxReachDepth      int     `json:"maxReachDepth" mapstructure:"maxReachDepth" toml:"maxReachDepth"`
	CTEFallbackEdges   int     `json:"cteFallbackEdges" mapstructure:"cteFallbackEdges" toml:"cteFallbackEdges"`
	TaintSCCIterations int     `json:"taintSccIterations" mapstructure:"taintSccIterations" toml:"taintSccIterations"`
}

// StorageConfig controls the embedded store.
type StorageConfig struct {
	Path            string `json:"path" mapstructure:"path" toml:"path"`
	ReaderPoolSize  int    `json:"readerPoolSize" mapstructure:"readerPoolSize" toml:"readerPoolSize"`
	BatchSize       int    `json:"batchSize" mapstructure:"batchSize" toml:"batchSize"`
	ChannelCapacity int    `json:"channelCapacity" mapstructure:"channelCapacity" toml:"channelCapacity"`
	BusyTimeoutMs   int    `json:"busyTimeoutMs" mapstructure:"busyTimeoutMs" toml:"busyTimeoutMs"`
	RetainDays      int    `json:"retainDays" mapstructure:"retainDays" toml:"retainDays"`
	RetainRows      int    `json:"retainRows" mapstructure:"retainRows" toml:"retainRows"`
	InMemory        bool   `json:"inMemory" mapstructure:"inMemory" toml:"inMemory"`
}

// LearningConfig controls convention learning thresholds.
type LearningConfig struct {
	MinOccurrences   int     `json:"minOccurrences" mapstructure:"minOccurrences" toml:"minOccurrences"`
	MinFileSpread    int     `json:"minFileSpread" mapstructure:"minFileSpread" toml:"minFileSpread"`
	DominanceRatio   float64 `json:"dominanceRatio" mapstructure:"dominanceRatio" toml:"dominanceRatio"`
	ContestedGap     float64 `json:"contestedGap" mapstructure:"contestedGap" toml:"contestedGap"`
	ExpiryDays       int     `json:"expiryDays" mapstructure:"expiryDays" toml:"expiryDays"`
	RelearnThreshold float64 `json:"relearnThreshold" mapstructure:"relearnThreshold" toml:"relearnThreshold"`
}

// BackupConfig controls corruption recovery.
type BackupConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir" toml:"dir"`
	Keep    int    `json:"keep" mapstructure:"keep" toml:"keep"`
}

// LoggingConfig controls engine logging.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level" toml:"level"`
	Format string `json:"format" mapstructure:"format" toml:"format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Workers:     0, // 0 = NumCPU
			MaxFileSize: 1 << 20,
			IgnoreFile:  ".driftignore",
		},
		Analysis: AnalysisConfig{
			PatternsFile:       ".drift/patterns.toml",
			TaintRegistryFile:  ".drift/taint.toml",
			FuzzyThreshold:     0.85,
			MaxReachDepth:      20,
			CTEFallbackEdges:   250000,
			TaintSCCIterations: 10,
		},
		Storage: StorageConfig{
			Path:            "drift.db",
			ReaderPoolSize:  4,
			BatchSize:       500,
			ChannelCapacity: 1024,
			BusyTimeoutMs:   5000,
			RetainDays:      90,
			RetainRows:      10000,
		},
		Learning: LearningConfig{
			MinOccurrences:   3,
			MinFileSpread:    2,
			DominanceRatio:   0.60,
			ContestedGap:     0.20,
			ExpiryDays:       90,
			RelearnThreshold: 0.10,
		},
		Backup: BackupConfig{
			Enabled: true,
			Dir:     ".drift/backups",
			Keep:    3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "human",
		},
	}
}

// Load resolves the layered configuration for projectRoot. An empty
// projectRoot falls back to DRIFT_PROJECT_ROOT, then the working directory.
func Load(projectRoot string) (*Config, error) {
	if projectRoot == "" {
		projectRoot = os.Getenv("DRIFT_PROJECT_ROOT")
	}
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.New(errors.ConfigInvalid, "cannot resolve project root", err)
		}
		projectRoot = wd
	}

	v := viper.New()
	setDefaults(v)

	// User-level file, lowest file layer.
	if home, err := os.UserHomeDir(); err == nil {
		userFile := filepath.Join(home, ".config", "drift", "config.toml")
		if _, statErr := os.Stat(userFile); statErr == nil {
			v.SetConfigFile(userFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.New(errors.ConfigInvalid, "user config unreadable", err)
			}
		}
	}

	// Project file overrides the user file.
	projectFile := filepath.Join(projectRoot, "drift.toml")
	if _, err := os.Stat(projectFile); err == nil {
		v.SetConfigFile(projectFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.New(errors.ConfigInvalid, "project config unreadable", err)
		}
	}

	// Optional YAML sidecar, merged after the TOML project file.
	if err := mergeYAMLSidecar(v, filepath.Join(projectRoot, ".drift.yaml")); err != nil {
		return nil, err
	}

	// Environment overrides every file layer.
	v.SetEnvPrefix("DRIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "config unmarshal failed", err)
	}
	cfg.ProjectRoot = projectRoot

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeYAMLSidecar merges a .drift.yaml override file if present.
func mergeYAMLSidecar(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New(errors.ConfigInvalid, "yaml sidecar unreadable", err)
	}

	overrides := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return errors.New(errors.ConfigInvalid, "yaml sidecar malformed", err)
	}
	if err := v.MergeConfigMap(overrides); err != nil {
		return errors.New(errors.ConfigInvalid, "yaml sidecar merge failed", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("scan.maxFileSize", d.Scan.MaxFileSize)
	v.SetDefault("scan.ignoreFile", d.Scan.IgnoreFile)
	v.SetDefault("scan.includeTests", d.Scan.IncludeTests)
	v.SetDefault("analysis.patternsFile", d.Analysis.PatternsFile)
	v.SetDefault("analysis.taintRegistryFile", d.Analysis.TaintRegistryFile)
	v.SetDefault("analysis.fuzzyThreshold", d.Analysis.FuzzyThreshold)
	v.SetDefault("analysis.maxReachDepth", d.Analysis.MaxReachDepth)
	v.SetDefault("analysis.cteFallbackEdges", d.Analysis.CTEFallbackEdges)
	v.SetDefault("analysis.taintSccIterations", d.Analysis.TaintSCCIterations)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.readerPoolSize", d.Storage.ReaderPoolSize)
	v.SetDefault("storage.batchSize", d.Storage.BatchSize)
	v.SetDefault("storage.channelCapacity", d.Storage.ChannelCapacity)
	v.SetDefault("storage.busyTimeoutMs", d.Storage.BusyTimeoutMs)
	v.SetDefault("storage.retainDays", d.Storage.RetainDays)
	v.SetDefault("storage.retainRows", d.Storage.RetainRows)
	v.SetDefault("learning.minOccurrences", d.Learning.MinOccurrences)
	v.SetDefault("learning.minFileSpread", d.Learning.MinFileSpread)
	v.SetDefault("learning.dominanceRatio", d.Learning.DominanceRatio)
	v.SetDefault("learning.contestedGap", d.Learning.ContestedGap)
	v.SetDefault("learning.expiryDays", d.Learning.ExpiryDays)
	v.SetDefault("learning.relearnThreshold", d.Learning.RelearnThreshold)
	v.SetDefault("backup.enabled", d.Backup.Enabled)
	v.SetDefault("backup.dir", d.Backup.Dir)
	v.SetDefault("backup.keep", d.Backup.Keep)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate checks constraints no layer may violate.
func (c *Config) Validate() error {
	if c.Scan.MaxFileSize <= 0 {
		return errors.Newf(errors.ConfigInvalid, "scan.maxFileSize must be positive, got %d", c.Scan.MaxFileSize)
	}
	if c.Analysis.FuzzyThreshold < 0 || c.Analysis.FuzzyThreshold > 1 {
		return errors.Newf(errors.ConfigInvalid, "analysis.fuzzyThreshold must be in [0,1], got %f", c.Analysis.FuzzyThreshold)
	}
	if c.Storage.ReaderPoolSize < 1 {
		return errors.Newf(errors.ConfigInvalid, "storage.readerPoolSize must be at least 1")
	}
	if c.Storage.BatchSize < 1 || c.Storage.BatchSize > 10000 {
		return errors.Newf(errors.ConfigInvalid, "storage.batchSize out of range: %d", c.Storage.BatchSize)
	}
	if c.Learning.DominanceRatio < 0.5 || c.Learning.DominanceRatio > 1 {
		return errors.Newf(errors.ConfigInvalid, "learning.dominanceRatio must be in [0.5,1], got %f", c.Learning.DominanceRatio)
	}
	return nil
}

// DatabasePath resolves the store path relative to the project root.
func (c *Config) DatabasePath() string {
	if c.Storage.InMemory {
		return ":memory:"
	}
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(c.ProjectRoot, c.Storage.Path)
}

// Save writes the project-level drift.toml.
func (c *Config) Save() error {
	data, err := gotoml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(c.ProjectRoot, "drift.toml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
