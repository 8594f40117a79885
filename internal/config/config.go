package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the index-build and search-tuning defaults the leann CLI
// consults when a flag isn't given explicitly on the command line. This is
// the only configuration surface retrieval-core has: there is no file
// walker, embedding-service client, or MCP server in this module to
// configure.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Search  SearchConfig `yaml:"search" json:"search"`
}

// IndexConfig configures StreamingIndexBuilder defaults consumed by
// `leann build` (see pkg/indexer.WithGraphDegree/WithBuildComplexity/WithRecompute).
type IndexConfig struct {
	// GraphDegree is the HNSW connectivity parameter M.
	GraphDegree int `yaml:"graph_degree" json:"graph_degree"`
	// BuildComplexity is the HNSW build-time expansion factor ef_construction.
	BuildComplexity int `yaml:"build_complexity" json:"build_complexity"`
	// Recompute additionally persists embeddings so a pruned index can still
	// answer queries by re-embedding passage text at search time.
	Recompute bool `yaml:"recompute" json:"recompute"`
}

// SearchConfig configures hybrid search parameters consumed by `leann search`.
type SearchConfig struct {
	// HybridAlpha weights vector score against BM25 score in HybridRerank:
	// combined = alpha*norm(vector) + (1-alpha)*norm(bm25). 0=bm25-only, 1=vector-only.
	HybridAlpha float64 `yaml:"hybrid_alpha" json:"hybrid_alpha"`
	// TopK is the default number of results to return.
	TopK int `yaml:"top_k" json:"top_k"`
	// Complexity is the HNSW search-time expansion factor ef_search.
	Complexity int `yaml:"complexity" json:"complexity"`
}

// NewConfig creates a new Config with sensible defaults. The index defaults
// match StreamingIndexBuilder's own (graph degree 16, build complexity 64);
// pkg/searcher has no defaults of its own for the search settings.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			GraphDegree:     16,
			BuildComplexity: 64,
			Recompute:       false,
		},
		Search: SearchConfig{
			HybridAlpha: 0.5,
			TopK:        10,
			Complexity:  64,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/leann/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/leann/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "leann", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "leann", "config.yaml")
	}
	return filepath.Join(home, ".config", "leann", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/leann/config.yaml)
//  3. Project config (.leann.yaml in project root)
//  4. Environment variables (LEANN_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .leann.yaml or .leann.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".leann.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".leann.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.GraphDegree != 0 {
		c.Index.GraphDegree = other.Index.GraphDegree
	}
	if other.Index.BuildComplexity != 0 {
		c.Index.BuildComplexity = other.Index.BuildComplexity
	}
	if other.Index.Recompute {
		c.Index.Recompute = other.Index.Recompute
	}

	if other.Search.HybridAlpha != 0 {
		c.Search.HybridAlpha = other.Search.HybridAlpha
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.Complexity != 0 {
		c.Search.Complexity = other.Search.Complexity
	}
}

// applyEnvOverrides applies LEANN_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LEANN_GRAPH_DEGREE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.GraphDegree = n
		}
	}
	if v := os.Getenv("LEANN_BUILD_COMPLEXITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.BuildComplexity = n
		}
	}
	if v := os.Getenv("LEANN_RECOMPUTE"); v != "" {
		c.Index.Recompute = strings.ToLower(v) == "true" || v == "1"
	}

	if v := os.Getenv("LEANN_HYBRID_ALPHA"); v != "" {
		if a, err := parseFloat64(v); err == nil && a >= 0 && a <= 1 {
			c.Search.HybridAlpha = a
		}
	}
	if v := os.Getenv("LEANN_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("LEANN_SEARCH_COMPLEXITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.Complexity = n
		}
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or .leann.yaml/.yml file by walking up the
// directory tree, so `leann` can be run from any subdirectory of a project.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".leann.yaml")) ||
			fileExists(filepath.Join(currentDir, ".leann.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.HybridAlpha < 0 || c.Search.HybridAlpha > 1 {
		return fmt.Errorf("search.hybrid_alpha must be between 0 and 1, got %f", c.Search.HybridAlpha)
	}
	if c.Index.GraphDegree <= 0 {
		return fmt.Errorf("index.graph_degree must be positive, got %d", c.Index.GraphDegree)
	}
	if c.Index.BuildComplexity <= 0 {
		return fmt.Errorf("index.build_complexity must be positive, got %d", c.Index.BuildComplexity)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.Complexity <= 0 {
		return fmt.Errorf("search.complexity must be positive, got %d", c.Search.Complexity)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}
