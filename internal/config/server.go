package config

import (
	"github.com/spf13/viper"
)

type BridgeConfig struct {
	BundlePaths []string      `mapstructure:"bundle_paths"`
	LogLevel    string        `mapstructure:"log_level"`
	FanOutLimit int64         `mapstructure:"fan_out_limit"`
	Sandbox     SandboxConfig `mapstructure:"sandbox"`
}

// SandboxConfig holds the Wasm runtime configuration for extension bundles.
type SandboxConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Module execution timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

func LoadBridgeConfig(configPath string) (*BridgeConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("bundle_paths", []string{"./bundles"})
	v.SetDefault("log_level", "info")
	v.SetDefault("fan_out_limit", 16)

	// Sandbox defaults
	v.SetDefault("sandbox.memory_pages", 256) // 16MB
	v.SetDefault("sandbox.debug", false)
	v.SetDefault("sandbox.cache_dir", "./build/wasm-cache")
	v.SetDefault("sandbox.max_instances", 100)
	v.SetDefault("sandbox.execution_timeout", 30)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg BridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
