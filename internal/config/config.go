package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	S3       S3Config
	Logger   Logger
	Pipeline PipelineConfig
	Worker   WorkerConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	AppVersion string
	Port       string
	Mode       string
}

type MongoConfig struct {
	URI    string
	DBName string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	StatusPrefix  string
}

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

// BaseURL is PublicURL without a trailing slash. Every blob URL in the
// system is BaseURL + "/" + key, so keys can be recovered by stripping
// the same base.
func (s *S3Config) BaseURL() string {
	return strings.TrimRight(s.PublicURL, "/")
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

// PipelineConfig tunes the transcoding pipeline: ffmpeg behaviour,
// per-stage timeouts and the concurrency bounds of the queues.
type PipelineConfig struct {
	Preset                  string
	TwoPassEncoding         bool
	FFmpegThreads           int
	SegmentSeconds          int
	ProbeTimeout            time.Duration
	EncodeTimeout           time.Duration
	TwoPassEncodeTimeout    time.Duration
	DownloadTimeout         time.Duration
	MaxConcurrentDeletions  int
	MaxConcurrentStorageOps int
	QueueCapacity           int
}

type WorkerConfig struct {
	PollInterval time.Duration
	MaxCPUUsage  float64
}

type UploadConfig struct {
	MaxVideoSizeMB    int64
	AllowedVideoTypes []string
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.Preset == "" {
		c.Pipeline.Preset = "fast"
	}
	if c.Pipeline.SegmentSeconds <= 0 {
		c.Pipeline.SegmentSeconds = 6
	}
	if c.Pipeline.ProbeTimeout <= 0 {
		c.Pipeline.ProbeTimeout = 30 * time.Second
	}
	if c.Pipeline.EncodeTimeout <= 0 {
		c.Pipeline.EncodeTimeout = 300 * time.Second
	}
	if c.Pipeline.TwoPassEncodeTimeout <= 0 {
		c.Pipeline.TwoPassEncodeTimeout = 600 * time.Second
	}
	if c.Pipeline.DownloadTimeout <= 0 {
		c.Pipeline.DownloadTimeout = 300 * time.Second
	}
	if c.Pipeline.MaxConcurrentDeletions <= 0 {
		c.Pipeline.MaxConcurrentDeletions = 2
	}
	if c.Pipeline.MaxConcurrentStorageOps <= 0 {
		c.Pipeline.MaxConcurrentStorageOps = 8
	}
	if c.Pipeline.QueueCapacity <= 0 {
		c.Pipeline.QueueCapacity = 128
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = time.Second
	}
	if c.Worker.MaxCPUUsage <= 0 {
		c.Worker.MaxCPUUsage = 90.0
	}
	if c.Upload.MaxVideoSizeMB <= 0 {
		c.Upload.MaxVideoSizeMB = 200
	}
	if len(c.Upload.AllowedVideoTypes) == 0 {
		c.Upload.AllowedVideoTypes = []string{
			"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo", "video/webm",
		}
	}
	if c.Redis.StatusPrefix == "" {
		c.Redis.StatusPrefix = "video:status:"
	}
}
