package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	Port        int
	PromptStore string // prompt store backend: "file", "redis"
	Discord     DiscordConfig
	ComfyUI     ComfyUIConfig
	Templates   TemplatesConfig
	Generation  GenerationConfig
	Redis       RedisConfig
	Archive     ArchiveConfig
}

// DiscordConfig Discord bot configuration
type DiscordConfig struct {
	Token   string
	GuildID string // empty registers commands globally
}

// ComfyUIConfig rendering backend configuration
type ComfyUIConfig struct {
	Address        string // host:port of the ComfyUI server
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// TemplatesConfig workflow template file locations
type TemplatesConfig struct {
	Txt2Img string
	Img2Img string
}

// GenerationConfig generation pipeline tuning
type GenerationConfig struct {
	MaxBatch          int
	PollInterval      time.Duration // dispatch loop polling interval
	HeartbeatInterval time.Duration // status message update cadence
}

// RedisConfig Redis configuration (prompt store backend)
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ArchiveConfig optional SFTP side channel for generated images
type ArchiveConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	RemotePath string
}

// Load loads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		PromptStore: getEnv("PROMPT_STORE", "file"),
		Discord: DiscordConfig{
			Token:   getEnv("DISCORD_TOKEN", ""),
			GuildID: getEnv("DISCORD_GUILD_ID", ""),
		},
		ComfyUI: ComfyUIConfig{
			Address:        getEnv("COMFYUI_SERVER_ADDRESS", "127.0.0.1:8188"),
			ConnectTimeout: time.Duration(getEnvInt("COMFYUI_CONNECT_TIMEOUT", 30)) * time.Second,
			RequestTimeout: time.Duration(getEnvInt("COMFYUI_REQUEST_TIMEOUT", 120)) * time.Second,
		},
		Templates: TemplatesConfig{
			Txt2Img: getEnv("WORKFLOW_TXT2IMG", "default_workflow.json"),
			Img2Img: getEnv("WORKFLOW_IMG2IMG", "img2img_workflow.json"),
		},
		Generation: GenerationConfig{
			MaxBatch:          getEnvInt("MAX_BATCH_SIZE", 4),
			PollInterval:      time.Duration(getEnvInt("QUEUE_POLL_INTERVAL_MS", 500)) * time.Millisecond,
			HeartbeatInterval: time.Duration(getEnvInt("HEARTBEAT_INTERVAL_MS", 1500)) * time.Millisecond,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Archive: ArchiveConfig{
			Enabled:    getEnvBool("SCP_ENABLED", false),
			Host:       getEnv("SCP_HOST", ""),
			Port:       getEnvInt("SCP_PORT", 22),
			Username:   getEnv("SCP_USERNAME", ""),
			Password:   getEnv("SCP_PASSWORD", ""),
			RemotePath: getEnv("SCP_REMOTE_PATH", ""),
		},
	}

	return cfg
}

// Validate checks the configuration for fatal misconfiguration
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return ErrDiscordTokenRequired
	}
	if c.ComfyUI.Address == "" {
		return ErrComfyAddressRequired
	}
	if c.Generation.MaxBatch < 1 {
		return ErrMaxBatchInvalid
	}
	if c.Archive.Enabled {
		if c.Archive.Host == "" || c.Archive.Username == "" || c.Archive.RemotePath == "" {
			return ErrArchiveIncomplete
		}
	}
	return nil
}

// configuration validation errors
var (
	ErrDiscordTokenRequired = fmt.Errorf("discord token is required")
	ErrComfyAddressRequired = fmt.Errorf("comfyui server address is required")
	ErrMaxBatchInvalid      = fmt.Errorf("max batch size must be at least 1")
	ErrArchiveIncomplete    = fmt.Errorf("archive is enabled but host, username or remote path is missing")
)

// getEnv gets environment variable, returns default value if not exists
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets integer environment variable, returns default value if not exists
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets boolean environment variable, returns default value if not exists
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
