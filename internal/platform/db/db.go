package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const driverName = "mysql"

type ServerConfig struct {
	Addr string `yaml:"addr"` // 例: ":8080"
	Mode string `yaml:"mode"` // dev | release
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// 顔照合まわりの設定。閾値・半径は旧版で 0.4/0.5・50/100 と揺れていたので
// ここで一本化する（既定: 0.4 / 50m）。
type FaceConfig struct {
	MatchThreshold   float64 `yaml:"match_threshold"`    // 既定 0.4
	DescriptorLength int     `yaml:"descriptor_length"`  // 既定 128
	EncoderBaseURL   string  `yaml:"encoder_base_url"`   // 外部エンコーダ(face-backend)
	EncoderTimeoutMS int     `yaml:"encoder_timeout_ms"` // 既定 10000
	InternalKey      string  `yaml:"internal_key"`       // X-Internal-Key (envで上書き)
}

type CheckinConfig struct {
	DefaultRadiusMeters    float64 `yaml:"default_radius_meters"`    // 既定 50
	WindowToleranceSeconds int     `yaml:"window_tolerance_seconds"` // 既定 5
	SweepIntervalSeconds   int     `yaml:"sweep_interval_seconds"`   // 既定 60
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"` // env JWT_SECRET で上書き
	TokenTTLHrs int    `yaml:"token_ttl_hours"`
}

type Config struct {
	Version string         `yaml:"version"`
	Server  ServerConfig   `yaml:"server"`
	DB      DatabaseConfig `yaml:"database"`
	Auth    AuthConfig     `yaml:"auth"`
	Face    FaceConfig     `yaml:"face"`
	Checkin CheckinConfig  `yaml:"checkin"`
}

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Face.MatchThreshold <= 0 {
		c.Face.MatchThreshold = 0.4
	}
	if c.Face.DescriptorLength <= 0 {
		c.Face.DescriptorLength = 128
	}
	if c.Face.EncoderTimeoutMS <= 0 {
		c.Face.EncoderTimeoutMS = 10000
	}
	if c.Checkin.DefaultRadiusMeters <= 0 {
		c.Checkin.DefaultRadiusMeters = 50
	}
	if c.Checkin.WindowToleranceSeconds <= 0 {
		c.Checkin.WindowToleranceSeconds = 5
	}
	if c.Checkin.SweepIntervalSeconds <= 0 {
		c.Checkin.SweepIntervalSeconds = 60
	}
	if c.Auth.TokenTTLHrs <= 0 {
		c.Auth.TokenTTLHrs = 24
	}
}

// 秘密情報は yaml に直書きせず環境変数で上書きできるようにする
func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("INTERNAL_FACE_API_KEY"); v != "" {
		c.Face.InternalKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
