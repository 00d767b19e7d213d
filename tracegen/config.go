// Package tracegen produces synthetic pipelined-processor traces. The
// workload is deterministic: identical configuration always reproduces
// byte-identical output.
package tracegen

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/jetstrace/jets/internal/stream"
	"github.com/jetstrace/jets/trace"
)

// Config holds the generator parameters. Counts are per parent level:
// Cores is cores per cluster, Threads is threads per core.
type Config struct {
	Clusters int    `yaml:"clusters" envconfig:"CLUSTERS" default:"1"`
	Cores    int    `yaml:"cores" envconfig:"CORES" default:"1"`
	Threads  int    `yaml:"threads" envconfig:"THREADS" default:"1"`
	InstrMin int    `yaml:"instr_min" envconfig:"INSTR_MIN" default:"100"`
	InstrMax int    `yaml:"instr_max" envconfig:"INSTR_MAX" default:"100"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"trace.jets"`

	// Compression forces the output codec ("none", "gzip", "zstd"). Empty
	// means derive it from the Output extension.
	Compression string `yaml:"compression" envconfig:"COMPRESSION" default:""`
}

// Default returns the default configuration: one cluster, one core, one
// thread, 100 instructions, plain-text output.
func Default() Config {
	return Config{
		Clusters: 1,
		Cores:    1,
		Threads:  1,
		InstrMin: 100,
		InstrMax: 100,
		Output:   "trace.jets",
	}
}

// FromEnv loads configuration from JETS_* environment variables on top of
// the defaults.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("jets", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", trace.ErrConfig, err)
	}
	return cfg, nil
}

// FromFile loads configuration from a YAML file on top of the defaults.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", trace.ErrConfig, path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before any I/O happens.
func (c Config) Validate() error {
	if c.Clusters < 1 {
		return fmt.Errorf("%w: clusters must be at least 1, got %d", trace.ErrConfig, c.Clusters)
	}
	if c.Cores < 1 {
		return fmt.Errorf("%w: cores must be at least 1, got %d", trace.ErrConfig, c.Cores)
	}
	if c.Threads < 1 {
		return fmt.Errorf("%w: threads must be at least 1, got %d", trace.ErrConfig, c.Threads)
	}
	if c.InstrMin < 0 {
		return fmt.Errorf("%w: instruction count must not be negative, got %d", trace.ErrConfig, c.InstrMin)
	}
	if c.InstrMin > c.InstrMax {
		return fmt.Errorf("%w: instruction range min %d exceeds max %d", trace.ErrConfig, c.InstrMin, c.InstrMax)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output path is empty", trace.ErrConfig)
	}
	if _, ok := c.codec(); !ok {
		return fmt.Errorf("%w: unknown compression %q", trace.ErrConfig, c.Compression)
	}
	return nil
}

// codec resolves the Compression field. The second return is false when the
// name is unknown; an empty name resolves to (None, true) and means "by
// extension".
func (c Config) codec() (stream.Codec, bool) {
	switch c.Compression {
	case "", "none":
		return stream.None, true
	case "gzip":
		return stream.Gzip, true
	case "zstd":
		return stream.Zstd, true
	default:
		return stream.None, false
	}
}

// Seed derives the deterministic PRNG seed from the structural parameters.
// Identical configurations reproduce identical traces; different ones very
// likely diverge.
func (c Config) Seed() uint64 {
	return uint64(c.Clusters)*1000 +
		uint64(c.Cores)*100 +
		uint64(c.Threads)*10 +
		uint64(c.InstrMin)
}
