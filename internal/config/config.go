package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/spf13/viper"
)

type TokenConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TransportConfig struct {
	// DefaultEndpoint is used when the token service does not return one.
	DefaultEndpoint string   `mapstructure:"default_endpoint"`
	ICEServers      []string `mapstructure:"ice_servers"`
}

type DashboardConfig struct {
	Identity       string        `mapstructure:"identity"`
	Rooms          []string      `mapstructure:"rooms"`
	EligiblePrefix string        `mapstructure:"eligible_prefix"`
	Features       core.Features `mapstructure:"features"`
}

type GuestConfig struct {
	IdentityPrefix string        `mapstructure:"identity_prefix"`
	EligiblePrefix string        `mapstructure:"eligible_prefix"`
	Features       core.Features `mapstructure:"features"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Token     TokenConfig     `mapstructure:"token"`
	Transport TransportConfig `mapstructure:"transport"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Guest     GuestConfig     `mapstructure:"guest"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// RoomIDs returns the dashboard rooms as identifiers.
func (c *Config) RoomIDs() []domain.RoomID {
	out := make([]domain.RoomID, 0, len(c.Dashboard.Rooms))
	for _, r := range c.Dashboard.Rooms {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, domain.RoomID(r))
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")

	v.SetDefault("token.url", "http://localhost:3000/api/token")
	v.SetDefault("token.timeout", "10s")
	v.SetDefault("transport.default_endpoint", "")
	v.SetDefault("transport.ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("dashboard.identity", domain.ReceptionistPrefix)
	v.SetDefault("dashboard.rooms", []string{"property-101", "property-102", "property-103"})
	v.SetDefault("dashboard.eligible_prefix", domain.ReceptionistPrefix)
	v.SetDefault("dashboard.features.fallback", true)
	v.SetDefault("dashboard.features.mute", true)
	v.SetDefault("dashboard.features.fullscreen", true)
	v.SetDefault("dashboard.features.publish_local", false)

	v.SetDefault("guest.identity_prefix", domain.GuestPrefix)
	v.SetDefault("guest.eligible_prefix", domain.ReceptionistPrefix)
	v.SetDefault("guest.features.fallback", true)
	v.SetDefault("guest.features.mute", true)
	v.SetDefault("guest.features.fullscreen", false)
	v.SetDefault("guest.features.publish_local", true)

	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.interval", "10s")
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName when it exists and falls back to defaults when it
// does not. RECEPTION_* environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("reception")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(fileName); statErr == nil {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Rooms: %s\n", cfg.Mode, cfg.Port, strings.Join(cfg.Dashboard.Rooms, ","))
	return &cfg, nil
}
