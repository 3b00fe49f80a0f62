// Package config provides configuration types and loading for yunguard.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Gateway, Platform, Paths, Moderation.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Platform   PlatformConfig   `json:"platform"`
	Paths      PathsConfig      `json:"paths"`
	Moderation ModerationConfig `json:"moderation"`
}

// GatewayConfig groups the inbound webhook listener settings.
type GatewayConfig struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
}

// PlatformConfig groups the outbound Yunhu open-api settings.
type PlatformConfig struct {
	Token   string        `json:"token" envconfig:"TOKEN"`
	BaseURL string        `json:"baseUrl" envconfig:"BASE_URL"`
	Timeout time.Duration `json:"timeout" envconfig:"TIMEOUT"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	AuditDB string `json:"auditDb" envconfig:"AUDIT_DB"`
}

// ModerationConfig holds the timing knobs of the moderation engines.
// These are deliberately configuration-visible rather than constants
// buried in handlers.
type ModerationConfig struct {
	ConfigCacheTTL     time.Duration `json:"configCacheTTL" envconfig:"CONFIG_CACHE_TTL"`
	VoteTTL            time.Duration `json:"voteTTL" envconfig:"VOTE_TTL"`
	VoteSweepInterval  time.Duration `json:"voteSweepInterval" envconfig:"VOTE_SWEEP_INTERVAL"`
	LinkTTL            time.Duration `json:"linkTTL" envconfig:"LINK_TTL"`
	LinkSweepInterval  time.Duration `json:"linkSweepInterval" envconfig:"LINK_SWEEP_INTERVAL"`
	BroadcastLineDelay time.Duration `json:"broadcastLineDelay" envconfig:"BROADCAST_LINE_DELAY"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 7889,
		},
		Platform: PlatformConfig{
			BaseURL: "https://chat-go.jwzhd.com/open-apis/v1",
			Timeout: 20 * time.Second,
		},
		Paths: PathsConfig{
			DataDir: "~/.yunguard/data",
			AuditDB: "~/.yunguard/audit.db",
		},
		Moderation: ModerationConfig{
			ConfigCacheTTL:     5 * time.Minute,
			VoteTTL:            24 * time.Hour,
			VoteSweepInterval:  60 * time.Second,
			LinkTTL:            5 * time.Minute,
			LinkSweepInterval:  60 * time.Second,
			BroadcastLineDelay: time.Second,
		},
	}
}
