package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "flowbridge"
	DefaultPGSSLMode      = "disable"
	DefaultRocketBaseURL  = "http://127.0.0.1:3000"
	DefaultFlowsBaseURL   = "https://flows.weni.ai"
	DefaultRoomFieldName  = "roomid"
	DefaultRequestTimeout = 15
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	RocketChat RocketChatConfig `toml:"rocketchat"`
	Bridge     BridgeConfig     `toml:"bridge"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// RocketChatConfig holds the chat server's REST credentials. BaseURL doubles
// as the public root for attachment links.
type RocketChatConfig struct {
	BaseURL   string `toml:"base_url"`
	UserID    string `toml:"user_id"`
	AuthToken string `toml:"auth_token"`
}

type BridgeConfig struct {
	Secret           string `toml:"secret"`
	FlowsBaseURL     string `toml:"flows_base_url"`
	FlowsOrgToken    string `toml:"flows_org_token"`
	RoomFieldName    string `toml:"room_field_name"`
	CloseRoomFlow    string `toml:"close_room_flow"`
	TransferRoomFlow string `toml:"transfer_room_flow"`
	RequestTimeout   int    `toml:"request_timeout"`
	Debug            bool   `toml:"debug"`
}

// RequestTimeoutDuration returns the outbound HTTP timeout as a duration.
func (c BridgeConfig) RequestTimeoutDuration() time.Duration {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return time.Duration(timeout) * time.Second
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		RocketChat: RocketChatConfig{
			BaseURL: DefaultRocketBaseURL,
		},
		Bridge: BridgeConfig{
			FlowsBaseURL:   DefaultFlowsBaseURL,
			RoomFieldName:  DefaultRoomFieldName,
			RequestTimeout: DefaultRequestTimeout,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.RocketChat.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.RocketChat.BaseURL), "/")
	cfg.Bridge.FlowsBaseURL = strings.TrimRight(strings.TrimSpace(cfg.Bridge.FlowsBaseURL), "/")
	// The flows side matches contact fields case-insensitively; store lowered.
	cfg.Bridge.RoomFieldName = strings.ToLower(strings.TrimSpace(cfg.Bridge.RoomFieldName))
	cfg.Bridge.CloseRoomFlow = strings.TrimSpace(cfg.Bridge.CloseRoomFlow)
	cfg.Bridge.TransferRoomFlow = strings.TrimSpace(cfg.Bridge.TransferRoomFlow)
}

func validate(cfg Config) error {
	if cfg.Bridge.CloseRoomFlow != "" {
		if _, err := uuid.Parse(cfg.Bridge.CloseRoomFlow); err != nil {
			return fmt.Errorf("bridge.close_room_flow is not a valid flow uuid: %w", err)
		}
	}
	if cfg.Bridge.TransferRoomFlow != "" {
		if _, err := uuid.Parse(cfg.Bridge.TransferRoomFlow); err != nil {
			return fmt.Errorf("bridge.transfer_room_flow is not a valid flow uuid: %w", err)
		}
	}
	return nil
}
