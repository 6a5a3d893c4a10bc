// Package config はアプリケーション設定を管理します。
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持します。
type Config struct {
	// データディレクトリのパス
	DataDir string `yaml:"data_dir"`

	// HTTPサーバーのポート
	Port string `yaml:"port"`

	// API認証キー。空の場合は認証なし
	APIKey string `yaml:"api_key"`

	// 添付ファイルをS3に保存するかどうか。false の場合はデータベースに保存する
	ExternalStorage bool `yaml:"external_storage"`

	S3 S3Config `yaml:"s3"`
}

// S3Config はS3の接続設定です。
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PublicBaseURL   string `yaml:"public_base_url"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// defaults は既定値の設定を返します。
func defaults() *Config {
	return &Config{
		DataDir: filepath.Join(".", "data"),
		Port:    "8080",
		S3: S3Config{
			Bucket: "taskstation-files",
			Region: "us-east-1",
		},
	}
}

// NewConfig は環境変数から設定を読み込み、Configインスタンスを生成します。
// TASKSTATION_CONFIG_FILE が指定されている場合はYAMLファイルを先に読み込み、環境変数で上書きします。
func NewConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("TASKSTATION_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile はYAMLファイルの内容で設定を上書きします。
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("TASKSTATION_DATA_DIR", c.DataDir)
	c.Port = getEnv("TASKSTATION_SERVER_PORT", c.Port)
	c.APIKey = getEnv("TASKSTATION_API_KEY", c.APIKey)
	c.ExternalStorage = getEnvBool("TASKSTATION_EXTERNAL_STORAGE", c.ExternalStorage)

	c.S3.Bucket = getEnv("TASKSTATION_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("TASKSTATION_S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("TASKSTATION_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.PublicBaseURL = getEnv("TASKSTATION_S3_PUBLIC_BASE_URL", c.S3.PublicBaseURL)
	c.S3.UsePathStyle = getEnvBool("TASKSTATION_S3_USE_PATH_STYLE", c.S3.UsePathStyle)
	c.S3.AccessKeyID = getEnv("TASKSTATION_S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("TASKSTATION_S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
}

// Validate は設定の整合性を確認します。
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is not configured")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Port)
	}
	if c.ExternalStorage && c.S3.Bucket == "" {
		return fmt.Errorf("s3 bucket is required when external storage is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Warning: invalid boolean value for %s: %s, using default %v", key, value, defaultValue)
			return defaultValue
		}
		return boolValue
	}
	return defaultValue
}
