// Package config binds the environment-driven configuration surface to a
// typed struct via viper, mirroring the CLI's own AutomaticEnv binding.
package config

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every recognized environment option.
type Config struct {
	DatabaseURL    string
	AllowedOrigins []string
	UserAgent      string

	GitHubToken     string
	VulnDBKey       string
	ThreatIntelKey  string
	LLMKey          string
	MailerKey       string
	ChatGuardKey    string

	JWTSecret     string
	EncryptionKey string

	RateLimitPerMinute int

	Port        string
	Environment string
	LogLevel    string

	SchedulerEnabled         bool
	SchedulerIntervalMinutes int
}

// Load reads environment variables (optionally overridden by pflag-bound
// CLI flags already registered on fs) into a Config, applying defaults and
// deriving EncryptionKey from JWTSecret when unset.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("user_agent", "threatveil-scanner/1.0")
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_interval_minutes", 5)

	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := Config{
		DatabaseURL:              v.GetString("database_url"),
		UserAgent:                v.GetString("user_agent"),
		GitHubToken:              v.GetString("github_token"),
		VulnDBKey:                v.GetString("vulndb_key"),
		ThreatIntelKey:           v.GetString("threat_intel_key"),
		LLMKey:                   v.GetString("llm_key"),
		MailerKey:                v.GetString("mailer_key"),
		ChatGuardKey:             v.GetString("chat_guard_key"),
		JWTSecret:                v.GetString("jwt_secret"),
		EncryptionKey:            v.GetString("encryption_key"),
		RateLimitPerMinute:       v.GetInt("rate_limit_per_minute"),
		Port:                     v.GetString("port"),
		Environment:              v.GetString("environment"),
		LogLevel:                 v.GetString("log_level"),
		SchedulerEnabled:         v.GetBool("scheduler_enabled"),
		SchedulerIntervalMinutes: v.GetInt("scheduler_interval_minutes"),
	}

	if origins := v.GetString("allowed_origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.EncryptionKey == "" && cfg.JWTSecret != "" {
		sum := sha256.Sum256([]byte(cfg.JWTSecret))
		cfg.EncryptionKey = fmt.Sprintf("%x", sum)
	}

	return cfg, nil
}
