// Package config loads service settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ECHALLAN"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Evidence  EvidenceConfig  `mapstructure:"evidence"`
	Mail      MailConfig      `mapstructure:"mail"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Redis     RedisConfig     `mapstructure:"redis"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb" validate:"gt=0"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

type ReferenceConfig struct {
	Path  string `mapstructure:"path" validate:"required"`
	Sheet string `mapstructure:"sheet"`
}

type DetectorConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// CameraConfig drives the live intake loop.
type CameraConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ID           string        `mapstructure:"id" validate:"required"`
	Source       string        `mapstructure:"source" validate:"required_if=Enabled true"`
	Kind         string        `mapstructure:"kind" validate:"omitempty,oneof=ffmpeg mjpeg"`
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
	FPS          float64       `mapstructure:"fps" validate:"gte=0"`
	Cooldown     time.Duration `mapstructure:"cooldown" validate:"gt=0"`
	OfficialID   string        `mapstructure:"official_id" validate:"required"`
	OfficialName string        `mapstructure:"official_name" validate:"required"`
	Location     string        `mapstructure:"location"`
	LeaseKey     string        `mapstructure:"lease_key"`
	LeaseTTL     time.Duration `mapstructure:"lease_ttl" validate:"gt=0"`
}

type ScanConfig struct {
	MaxFrames     int     `mapstructure:"max_frames" validate:"gt=0"`
	SampleEvery   int     `mapstructure:"sample_every" validate:"gt=0"`
	MinConfidence float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	FFmpegPath    string  `mapstructure:"ffmpeg_path"`
	OfficialID    string  `mapstructure:"official_id" validate:"required"`
	OfficialName  string  `mapstructure:"official_name" validate:"required"`
	Location      string  `mapstructure:"location"`
}

type EvidenceConfig struct {
	Backend         string `mapstructure:"backend" validate:"oneof=local gcs"`
	Dir             string `mapstructure:"dir" validate:"required_if=Backend local"`
	URLPrefix       string `mapstructure:"url_prefix"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type MailConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from" validate:"omitempty,email"`
	SSL        bool   `mapstructure:"ssl"`
	PaymentURL string `mapstructure:"payment_url" validate:"omitempty,url"`
}

type NotifyConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"gt=0"`
}

// RedisConfig is optional; an empty Addr disables Redis publishing and the
// camera lease.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// PubSubConfig is optional; an empty ProjectID disables Pub/Sub publishing.
type PubSubConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Topic           string `mapstructure:"topic" validate:"required_with=ProjectID"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.max_upload_mb", 200)

	v.SetDefault("database.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("reference.path", "data/vahan_data.csv")
	v.SetDefault("reference.sheet", "")

	v.SetDefault("detector.url", "http://localhost:9000/detect")
	v.SetDefault("detector.timeout", 10*time.Second)

	v.SetDefault("camera.enabled", false)
	v.SetDefault("camera.id", "CAM-01")
	v.SetDefault("camera.source", "")
	v.SetDefault("camera.kind", "")
	v.SetDefault("camera.ffmpeg_path", "ffmpeg")
	v.SetDefault("camera.fps", 0)
	v.SetDefault("camera.cooldown", 1500*time.Millisecond)
	v.SetDefault("camera.official_id", "SYSTEM")
	v.SetDefault("camera.official_name", "AI Camera")
	v.SetDefault("camera.location", "DELHI ZONE 04 - TECH PARK")
	v.SetDefault("camera.lease_key", "")
	v.SetDefault("camera.lease_ttl", 30*time.Second)

	v.SetDefault("scan.max_frames", 450)
	v.SetDefault("scan.sample_every", 5)
	v.SetDefault("scan.min_confidence", 0.4)
	v.SetDefault("scan.ffmpeg_path", "ffmpeg")
	v.SetDefault("scan.official_id", "OFFICER-01")
	v.SetDefault("scan.official_name", "Traffic Officer")
	v.SetDefault("scan.location", "DELHI ZONE 04 - MANUAL SCAN")

	v.SetDefault("evidence.backend", "local")
	v.SetDefault("evidence.dir", "static/uploads")
	v.SetDefault("evidence.url_prefix", "/static/uploads")
	v.SetDefault("evidence.bucket", "")
	v.SetDefault("evidence.prefix", "proofs")
	v.SetDefault("evidence.credentials_json", "")

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.ssl", true)
	v.SetDefault("mail.payment_url", "")

	v.SetDefault("notify.queue_size", 64)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "echallan:plates")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("pubsub.credentials_json", "")
}

// Load reads configuration from defaults, an optional file and ECHALLAN_*
// environment variables (a .env file in the working directory is honoured),
// in increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
