package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Sync     SyncConfig     `yaml:"sync"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	UploadSessionExpire int    `yaml:"upload_session_expire"`
}

type StorageConfig struct {
	Bucket           string `yaml:"bucket"`
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	UsePathStyle     bool   `yaml:"use_path_style"`
	MaxFileSize      int64  `yaml:"max_file_size"`
	MinChunkSize     int64  `yaml:"min_chunk_size"`
	MaxChunkSize     int64  `yaml:"max_chunk_size"`
	MaxPartCount     int    `yaml:"max_part_count"`
	PresignExpireSec int    `yaml:"presign_expire_sec"`
}

type SyncConfig struct {
	PageSize           int `yaml:"page_size"`
	TrashRetentionDays int `yaml:"trash_retention_days"`
	CleanupInterval    int `yaml:"cleanup_interval"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Charset == "" {
		cfg.Database.Charset = "utf8mb4"
	}
	if cfg.Storage.MaxFileSize <= 0 {
		cfg.Storage.MaxFileSize = 50 << 30
	}
	if cfg.Storage.MinChunkSize <= 0 {
		cfg.Storage.MinChunkSize = 5 << 20
	}
	if cfg.Storage.MaxChunkSize <= 0 {
		cfg.Storage.MaxChunkSize = 100 << 20
	}
	if cfg.Storage.MaxPartCount <= 0 {
		cfg.Storage.MaxPartCount = 10000
	}
	if cfg.Storage.PresignExpireSec <= 0 {
		cfg.Storage.PresignExpireSec = 3600
	}
	if cfg.Redis.UploadSessionExpire <= 0 {
		cfg.Redis.UploadSessionExpire = 86400
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Sync.TrashRetentionDays <= 0 {
		cfg.Sync.TrashRetentionDays = 30
	}
	if cfg.JWT.ExpireHours <= 0 {
		cfg.JWT.ExpireHours = 24
	}
}
