package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	RCON      RCONConfig      `yaml:"rcon"`
	Minecraft MinecraftConfig `yaml:"minecraft"`
	OTel      OTelConfig      `yaml:"otel"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type DiscordConfig struct {
	Token       string   `yaml:"token"`
	GuildID     string   `yaml:"guild_id"`
	ChatChannel string   `yaml:"chat_channel"`
	Events      []string `yaml:"events"` // list of event types, or ["all"]
	ServerName  string   `yaml:"server_name"`
}

type RCONConfig struct {
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port"`
	Password      string        `yaml:"password"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

type MinecraftConfig struct {
	ServerPath     string        `yaml:"server_path"`
	LogPath        string        `yaml:"log_path"`
	LogEncoding    string        `yaml:"log_encoding"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	StatusInterval time.Duration `yaml:"status_interval"`
	SchematicDir   string        `yaml:"schematic_dir"`
	TeleportPoints string        `yaml:"teleport_points"`
	TeleportScript string        `yaml:"teleport_script"`
}

type OTelConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Endpoint    string   `yaml:"endpoint"`
	ServiceName string   `yaml:"service_name"`
	Events      []string `yaml:"events"`
}

type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func defaultConfig() Config {
	return Config{
		Discord: DiscordConfig{
			Events:     []string{"all"},
			ServerName: "Minecraft",
		},
		RCON: RCONConfig{
			Host:          "localhost",
			Port:          "25575",
			RetryDelay:    2 * time.Second,
			MaxRetryDelay: 30 * time.Second,
		},
		Minecraft: MinecraftConfig{
			ServerPath:     ".",
			LogEncoding:    "auto",
			PollInterval:   250 * time.Millisecond,
			StatusInterval: 30 * time.Second,
		},
		OTel: OTelConfig{
			ServiceName: "mc-discord-bridge",
			Events:      []string{"all"},
		},
		Metrics: MetricsConfig{
			Interval: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// loadConfig reads the YAML (or JSON) config at path, applies env overrides
// and fills paths derived from the server directory. An empty path falls back
// to CONFIG_PATH, then config.yaml; a missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = envOr("CONFIG_PATH", "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	// Env overrides (secrets + runtime values)
	overrideFromEnv(&cfg.Discord.Token, "DISCORD_BOT_TOKEN")
	overrideFromEnv(&cfg.Discord.ChatChannel, "DISCORD_CHANNEL_ID")
	overrideFromEnv(&cfg.Discord.GuildID, "DISCORD_GUILD_ID")
	overrideFromEnv(&cfg.RCON.Host, "RCON_HOST")
	overrideFromEnv(&cfg.RCON.Port, "RCON_PORT")
	overrideFromEnv(&cfg.RCON.Password, "RCON_PASSWORD")
	overrideFromEnv(&cfg.Minecraft.ServerPath, "MINECRAFT_SERVER_PATH")

	cfg.Minecraft.applyDerivedPaths()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (m *MinecraftConfig) applyDerivedPaths() {
	if m.LogPath == "" {
		m.LogPath = filepath.Join(m.ServerPath, "logs", "latest.log")
	}
	if m.SchematicDir == "" {
		m.SchematicDir = filepath.Join(m.ServerPath, "schematics")
	}
	if m.TeleportPoints == "" {
		m.TeleportPoints = filepath.Join(m.ServerPath, "teleportpoints.json")
	}
	if m.TeleportScript == "" {
		m.TeleportScript = filepath.Join(m.ServerPath, "world", "datapacks", "teleportpoint",
			"data", "teleportpoint", "functions", "list.mcfunction")
	}
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token is required (DISCORD_BOT_TOKEN)")
	}
	if c.Discord.ChatChannel == "" {
		return fmt.Errorf("discord chat channel is required (DISCORD_CHANNEL_ID)")
	}
	if c.RCON.Password == "" {
		return fmt.Errorf("rcon password is required (RCON_PASSWORD)")
	}
	if c.Minecraft.PollInterval <= 0 {
		return fmt.Errorf("minecraft.poll_interval must be positive, got %s", c.Minecraft.PollInterval)
	}
	if c.RCON.RetryDelay <= 0 || c.RCON.MaxRetryDelay < c.RCON.RetryDelay {
		return fmt.Errorf("invalid rcon retry delays %s/%s", c.RCON.RetryDelay, c.RCON.MaxRetryDelay)
	}
	return nil
}

// discordEventAllowed returns whether a given event type should be posted to Discord.
func (c *Config) discordEventAllowed(eventType string) bool {
	return eventListAllows(c.Discord.Events, eventType)
}

// otelEventAllowed returns whether a given event type should be emitted as an OTel log record.
func (c *Config) otelEventAllowed(eventType string) bool {
	if !c.OTel.Enabled {
		return false
	}
	return eventListAllows(c.OTel.Events, eventType)
}

func eventListAllows(list []string, eventType string) bool {
	return slices.Contains(list, "all") || slices.Contains(list, eventType)
}

func overrideFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
