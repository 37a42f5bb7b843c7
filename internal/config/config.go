package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/MeKo-Tech/gohtr/internal/dataset"
	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/nn"
	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/MeKo-Tech/gohtr/internal/preprocess"
	"github.com/MeKo-Tech/gohtr/internal/recognizer"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	trainer := pipeline.DefaultConfig()
	return Config{
		ModelDir: models.DefaultModelDir,
		DataDir:  models.DefaultDataDir,
		LogLevel: "info",
		Verbose:  false,
		Training: TrainingConfig{
			BatchSize:     dataset.DefaultConfig().BatchSize,
			EarlyStopping: trainer.EarlyStopping,
			MaxEpochs:     trainer.MaxEpochs,
			Augment:       trainer.Augment,
		},
		Image: ImageConfig{
			Width:  trainer.ImageWidth,
			Height: trainer.ImageHeight,
		},
		Inference: InferenceConfig{
			Padding: pipeline.DefaultInferencePadding,
		},
		Network: defaultNetworkConfig(),
	}
}

// defaultNetworkConfig returns the network layout of nn.DefaultArchitecture.
func defaultNetworkConfig() NetworkConfig {
	arch := nn.DefaultArchitecture()
	pools := make([][]int, len(arch.Pools))
	for i, p := range arch.Pools {
		pools[i] = []int{p.W, p.H}
	}
	return NetworkConfig{
		Kernels:      slices.Clone(arch.Kernels),
		Features:     slices.Clone(arch.Features),
		Pools:        pools,
		Hidden:       arch.Hidden,
		Layers:       arch.Layers,
		LearningRate: arch.LearningRate,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("invalid training.batch_size: %d (must be positive)", c.Training.BatchSize)
	}
	if c.Training.EarlyStopping <= 0 {
		return fmt.Errorf("invalid training.early_stopping: %d (must be positive)", c.Training.EarlyStopping)
	}
	if c.Training.MaxEpochs < 0 {
		return fmt.Errorf("invalid training.max_epochs: %d (must not be negative)", c.Training.MaxEpochs)
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		return fmt.Errorf("invalid image size: %dx%d (must be positive)", c.Image.Width, c.Image.Height)
	}
	if c.Inference.Padding < 0 {
		return fmt.Errorf("invalid inference.padding: %d (must not be negative)", c.Inference.Padding)
	}

	for i, p := range c.Network.Pools {
		if len(p) != 2 {
			return fmt.Errorf("invalid network.pools[%d]: %v (must be a [width, height] pair)", i, p)
		}
	}
	if err := c.ToNetworkConfig().Validate(); err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}
	if down := c.ToNetworkConfig().Downsample(); c.Image.Width%down != 0 {
		return fmt.Errorf("invalid image.width: %d (must be a multiple of the time downsampling %d)", c.Image.Width, down)
	}

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("invalid metrics.addr: %w", err)
		}
	}
	return nil
}

// ToNetworkConfig converts the config to the network architecture. The input
// height is the configured image height.
func (c *Config) ToNetworkConfig() nn.Architecture {
	pools := make([]nn.Pool, 0, len(c.Network.Pools))
	for _, p := range c.Network.Pools {
		if len(p) == 2 {
			pools = append(pools, nn.Pool{W: p[0], H: p[1]})
		}
	}
	return nn.Architecture{
		Height:       c.Image.Height,
		Kernels:      slices.Clone(c.Network.Kernels),
		Features:     slices.Clone(c.Network.Features),
		Pools:        pools,
		Hidden:       c.Network.Hidden,
		Layers:       c.Network.Layers,
		LearningRate: c.Network.LearningRate,
		Seed:         c.Training.Seed,
	}
}

// ToPreprocessConfig converts to the training preprocessor configuration.
func (c *Config) ToPreprocessConfig() preprocess.Config {
	cfg := preprocess.DefaultConfig()
	cfg.Width = c.Image.Width
	cfg.Height = c.Image.Height
	cfg.Augment = c.Training.Augment
	cfg.Seed = c.Training.Seed
	return cfg
}

// ToInferenceConfig converts to the dynamic-width preprocessor configuration.
func (c *Config) ToInferenceConfig() preprocess.Config {
	return preprocess.InferenceConfig(c.Image.Height, c.Inference.Padding)
}

// ToLoaderConfig converts to dataset.Config.
func (c *Config) ToLoaderConfig() dataset.Config {
	return dataset.Config{
		DataDir:   c.DataDir,
		BatchSize: c.Training.BatchSize,
		Seed:      c.Training.Seed,
	}
}

// ToRecognizerConfig converts to recognizer.Config.
func (c *Config) ToRecognizerConfig(mustRestore bool) recognizer.Config {
	return recognizer.Config{
		ModelDir:     c.ModelDir,
		MustRestore:  mustRestore,
		Architecture: c.ToNetworkConfig(),
	}
}

// ToTrainerConfig converts to pipeline.Config. Progress and metrics are left
// for the caller to attach.
func (c *Config) ToTrainerConfig() pipeline.Config {
	return pipeline.Config{
		EarlyStopping: c.Training.EarlyStopping,
		MaxEpochs:     c.Training.MaxEpochs,
		ImageWidth:    c.Image.Width,
		ImageHeight:   c.Image.Height,
		Augment:       c.Training.Augment,
		Seed:          c.Training.Seed,
	}
}

// ToRunOptions converts to pipeline.Options for the given mode.
func (c *Config) ToRunOptions(mode pipeline.Mode) pipeline.Options {
	return pipeline.Options{
		Mode:             mode,
		DataDir:          c.DataDir,
		ModelDir:         c.ModelDir,
		BatchSize:        c.Training.BatchSize,
		InferencePadding: c.Inference.Padding,
		Architecture:     c.ToNetworkConfig(),
		Trainer:          c.ToTrainerConfig(),
	}
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// ParseYAML decodes a YAML document over the defaults and validates the result.
func ParseYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
