// Package config loads and validates the server configuration. Every value
// can be supplied through an IMGFORGE_* environment variable; a config.yaml
// in the working directory is read when present for local development.
package config

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"imgforge/pkg/utils"
)

// envKeys enumerates every configurable key so AutomaticEnv unmarshalling
// sees variables that have no value in any config file.
var envKeys = []string{
	"bind", "log_level", "key", "salt", "allow_unsigned",
	"workers", "timeout", "download_timeout", "rate_limit_per_minute",
	"max_src_file_size", "max_src_resolution", "allowed_mime_types",
	"allow_security_options", "secret", "watermark_path",
	"presets", "only_presets",
	"cache.type", "cache.memory_capacity", "cache.disk_path", "cache.disk_capacity",
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("IMGFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		v.MustBindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug().Msg("no config file found, using environment and defaults")
		} else {
			log.Warn().Err(err).Msg("config file found but unreadable")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("bind", "0.0.0.0:3000")
	v.SetDefault("log_level", "info")

	// Signing
	v.SetDefault("key", "")
	v.SetDefault("salt", "")
	v.SetDefault("allow_unsigned", false)

	// Limits
	v.SetDefault("workers", 0)
	v.SetDefault("timeout", 30)
	v.SetDefault("download_timeout", 10)
	v.SetDefault("rate_limit_per_minute", 0)

	// Source guards
	v.SetDefault("max_src_file_size", "")
	v.SetDefault("max_src_resolution", 0.0)
	v.SetDefault("allowed_mime_types", "")
	v.SetDefault("allow_security_options", false)

	// Auth & presets
	v.SetDefault("secret", "")
	v.SetDefault("watermark_path", "")
	v.SetDefault("presets", "")
	v.SetDefault("only_presets", false)

	// Caching
	v.SetDefault("cache.type", "none")
	v.SetDefault("cache.memory_capacity", 1000)
	v.SetDefault("cache.disk_path", "")
	v.SetDefault("cache.disk_capacity", 10000)
}

// finalize decodes derived fields and validates cross-field constraints.
func (c *Config) finalize() error {
	var err error

	c.KeyBytes, err = hex.DecodeString(c.Key)
	if err != nil {
		return fmt.Errorf("invalid IMGFORGE_KEY: not a hex string")
	}
	c.SaltBytes, err = hex.DecodeString(c.Salt)
	if err != nil {
		return fmt.Errorf("invalid IMGFORGE_SALT: not a hex string")
	}

	if len(c.KeyBytes) == 0 && !c.AllowUnsigned {
		log.Warn().Msg("no signing key configured and unsigned URLs disallowed; every request will be rejected")
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * 2
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download_timeout must be positive, got %d", c.DownloadTimeout)
	}

	c.Bind = normalizeBind(c.Bind)

	if c.MaxSrcFileSize != "" {
		c.MaxSrcFileSizeByte = utils.SizeToBytes(c.MaxSrcFileSize, 0)
		if c.MaxSrcFileSizeByte <= 0 {
			return fmt.Errorf("invalid max_src_file_size %q", c.MaxSrcFileSize)
		}
	}

	if c.AllowedMimeTypes != "" {
		for _, mime := range strings.Split(c.AllowedMimeTypes, ",") {
			mime = strings.TrimSpace(mime)
			if mime != "" {
				c.AllowedMimeList = append(c.AllowedMimeList, mime)
			}
		}
	}

	switch c.Cache.Type {
	case "none", "memory", "disk", "hybrid":
	default:
		return fmt.Errorf("invalid cache type %q (want memory, disk, hybrid, or none)", c.Cache.Type)
	}
	if (c.Cache.Type == "disk" || c.Cache.Type == "hybrid") && c.Cache.DiskPath == "" {
		return fmt.Errorf("cache type %q requires cache.disk_path", c.Cache.Type)
	}
	if c.Cache.MemoryCapacity <= 0 {
		c.Cache.MemoryCapacity = 1000
	}
	if c.Cache.DiskCapacity <= 0 {
		c.Cache.DiskCapacity = 10000
	}

	return nil
}

// normalizeBind maps a bare port number to a full listen address.
func normalizeBind(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "0.0.0.0:3000"
	}
	if !strings.Contains(trimmed, ":") {
		return "0.0.0.0:" + trimmed
	}
	return trimmed
}
