package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/siherrmann/excerpter/core/extraction"
	"github.com/siherrmann/excerpter/core/inference"
	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/database"
	"github.com/siherrmann/excerpter/model"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost       = "localhost"
	DefaultPort       = 8899
	DefaultURL        = "https://en.wikipedia.org/wiki/COVID-19_pandemic"
	DefaultSearchDocs = 3
)

// DatabaseConfig toggles the paper store. Connection settings come from the environment.
// An empty vector index type keeps the index the table was created with.
type DatabaseConfig struct {
	Enabled             bool                 `yaml:"enabled"`
	SimilarityThreshold float64              `yaml:"similarity_threshold"`
	VectorIndex         database.VectorIndex `yaml:"vector_index"`
}

// Config is the application configuration. It is not changed after startup.
type Config struct {
	Accelerator string `yaml:"accelerator"`
	ModelName   string `yaml:"model_name"`

	extraction.Settings `yaml:",inline"`

	MaxPageSize    int           `yaml:"max_page_size"`
	Workers        int           `yaml:"workers"`
	RemoteEndpoint string        `yaml:"remote_endpoint"`
	RemoteTimeout  time.Duration `yaml:"remote_timeout"`

	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DefaultURL     string `yaml:"default_url"`
	SearchNDocs    int    `yaml:"search_n_docs"`
	SearchStrategy string `yaml:"search_strategy"`
	LogLevel       string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`
}

// Default returns the configuration used for every key missing in the file
func Default() *Config {
	return &Config{
		Accelerator:    model.AcceleratorCPU,
		ModelName:      pipeline.DefaultModelName,
		Settings:       extraction.DefaultSettings(),
		MaxPageSize:    inference.DefaultMaxChunkSize,
		Workers:        inference.DefaultWorkers,
		RemoteTimeout:  inference.DefaultRemoteTimeout,
		Host:           DefaultHost,
		Port:           DefaultPort,
		DefaultURL:     DefaultURL,
		SearchNDocs:    DefaultSearchDocs,
		SearchStrategy: "keyword",
		LogLevel:       "info",
		Database: DatabaseConfig{
			SimilarityThreshold: 0.5,
		},
	}
}

// Load reads a config from path on top of the defaults.
// If the file does not exist, the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Override applies key=value pairs, e.g. from the command line.
// Nested keys are separated by dots (database.enabled=true).
func (c *Config) Override(pairs ...string) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid override %q, expected key=value", pair)
		}

		document, err := overrideDocument(key, value)
		if err != nil {
			return fmt.Errorf("error applying override %q: %w", pair, err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(document))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil {
			return fmt.Errorf("error applying override %q: %w", pair, err)
		}
	}
	return nil
}

// overrideDocument nests the untagged value under the dotted key path,
// so it resolves to the type of the field it is decoded into.
func overrideDocument(key string, value string) ([]byte, error) {
	parts := strings.Split(key, ".")
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: strings.TrimSpace(value)}
	for i := len(parts) - 1; i >= 0; i-- {
		node = &yaml.Node{
			Kind:    yaml.MappingNode,
			Content: []*yaml.Node{{Kind: yaml.ScalarNode, Value: parts[i]}, node},
		}
	}
	return yaml.Marshal(node)
}

// Validate checks the values that cannot fall back to a default
func (c *Config) Validate() error {
	strategy, err := model.StrategyForAccelerator(c.Accelerator)
	if err != nil {
		return err
	}
	if strategy == model.StrategyRemoteDelegated && c.RemoteEndpoint == "" {
		return fmt.Errorf("accelerator %s needs a remote_endpoint", c.Accelerator)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Database.VectorIndex.Type {
	case "", database.IndexHNSW, database.IndexIVFFlat:
	default:
		return fmt.Errorf("invalid database.vector_index.type %q", c.Database.VectorIndex.Type)
	}
	if c.SearchNDocs < 0 {
		return fmt.Errorf("invalid search_n_docs %d", c.SearchNDocs)
	}
	return nil
}

// Strategy is the execution strategy selected by the accelerator
func (c *Config) Strategy() model.ExecutionStrategy {
	strategy, err := model.StrategyForAccelerator(c.Accelerator)
	if err != nil {
		return model.StrategyLocalParallel
	}
	return strategy
}

// ExecutorOptions returns the options for inference.New
func (c *Config) ExecutorOptions() inference.Options {
	return inference.Options{
		Strategy:       c.Strategy(),
		Workers:        c.Workers,
		MaxChunkSize:   c.MaxPageSize,
		RemoteEndpoint: c.RemoteEndpoint,
		RemoteTimeout:  c.RemoteTimeout,
	}
}

// Address is the listen address of the request service
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
