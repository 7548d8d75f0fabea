package config

// Config is the full startup configuration, populated from IMGFORGE_*
// environment variables (and an optional config.yaml for local development).
type Config struct {
	// Bind: listen address; a bare port number maps to 0.0.0.0:<port>
	Bind string `mapstructure:"bind"`

	// LogLevel: zerolog level (trace, debug, info, warn, error)
	LogLevel string `mapstructure:"log_level"`

	// Key: hex-encoded HMAC key for URL signatures
	Key string `mapstructure:"key"`

	// Salt: hex-encoded salt prepended to the signed path
	Salt string `mapstructure:"salt"`

	// AllowUnsigned: honor the literal "unsafe" signature token
	AllowUnsigned bool `mapstructure:"allow_unsigned"`

	// Workers: capacity of the processing semaphore; 0 means 2x CPU cores
	Workers int `mapstructure:"workers"`

	// Timeout: hard per-request budget in seconds
	Timeout int `mapstructure:"timeout"`

	// DownloadTimeout: source fetch budget in seconds, inner bound of Timeout
	DownloadTimeout int `mapstructure:"download_timeout"`

	// RateLimitPerMinute: global token bucket; 0 disables rate limiting
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	// MaxSrcFileSize: source byte cap, raw bytes or human units ("4MB"); empty disables
	MaxSrcFileSize string `mapstructure:"max_src_file_size"`

	// MaxSrcResolution: source resolution cap in megapixels; 0 disables
	MaxSrcResolution float64 `mapstructure:"max_src_resolution"`

	// AllowedMimeTypes: comma-separated source MIME allowlist; empty allows all
	AllowedMimeTypes string `mapstructure:"allowed_mime_types"`

	// AllowSecurityOptions: honor per-request max_src_* overrides from the URL
	AllowSecurityOptions bool `mapstructure:"allow_security_options"`

	// Secret: bearer token required on every endpoint when set
	Secret string `mapstructure:"secret"`

	// WatermarkPath: local watermark image used when no watermark_url is given
	WatermarkPath string `mapstructure:"watermark_path"`

	// Presets: preset definitions, "name=opt/opt,name2=opt" form
	Presets string `mapstructure:"presets"`

	// OnlyPresets: restrict URL directives to preset references
	OnlyPresets bool `mapstructure:"only_presets"`

	// Cache: rendered-image cache backend selection and capacities
	Cache CacheConfig `mapstructure:"cache"`

	// Derived at load time, never read from the environment directly.
	KeyBytes           []byte   `mapstructure:"-"`
	SaltBytes          []byte   `mapstructure:"-"`
	MaxSrcFileSizeByte int64    `mapstructure:"-"`
	AllowedMimeList    []string `mapstructure:"-"`
}

type CacheConfig struct {
	// Type: one of memory, disk, hybrid, none
	Type string `mapstructure:"type"`

	// MemoryCapacity: entry count bound for the memory tier
	MemoryCapacity int `mapstructure:"memory_capacity"`

	// DiskPath: directory holding the SQLite block store
	DiskPath string `mapstructure:"disk_path"`

	// DiskCapacity: entry count bound for the disk tier
	DiskCapacity int `mapstructure:"disk_capacity"`
}
