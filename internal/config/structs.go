//nolint:lll
package config

// Config represents the complete configuration for the htr application.
// It covers the train, validate and infer commands and supports loading from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir" json:"model_dir"`
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Training loop
	Training TrainingConfig `mapstructure:"training" yaml:"training" json:"training"`

	// Fixed-size training and validation images
	Image ImageConfig `mapstructure:"image" yaml:"image" json:"image"`

	// Single-image recognition
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference" json:"inference"`

	// Network layout
	Network NetworkConfig `mapstructure:"network" yaml:"network" json:"network"`

	// Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// TrainingConfig contains epoch loop settings.
type TrainingConfig struct {
	BatchSize     int   `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	EarlyStopping int   `mapstructure:"early_stopping" yaml:"early_stopping" json:"early_stopping"`
	MaxEpochs     int   `mapstructure:"max_epochs" yaml:"max_epochs" json:"max_epochs"`
	Augment       bool  `mapstructure:"augment" yaml:"augment" json:"augment"`
	Seed          int64 `mapstructure:"seed" yaml:"seed" json:"seed"`
}

// ImageConfig contains the preprocessing target size.
type ImageConfig struct {
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`
}

// InferenceConfig contains dynamic-width settings for single images.
type InferenceConfig struct {
	Padding int `mapstructure:"padding" yaml:"padding" json:"padding"`
}

// NetworkConfig contains the CNN and RNN layout. Pools are [width, height] pairs.
type NetworkConfig struct {
	Kernels      []int   `mapstructure:"kernels" yaml:"kernels,flow" json:"kernels"`
	Features     []int   `mapstructure:"features" yaml:"features,flow" json:"features"`
	Pools        [][]int `mapstructure:"pools" yaml:"pools,flow" json:"pools"`
	Hidden       int     `mapstructure:"hidden" yaml:"hidden" json:"hidden"`
	Layers       int     `mapstructure:"layers" yaml:"layers" json:"layers"`
	LearningRate float64 `mapstructure:"learning_rate" yaml:"learning_rate" json:"learning_rate"`
}

// MetricsConfig contains the Prometheus listener address; empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}
