package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Discord application credentials.
	ClientID     string
	ClientSecret string
	BotToken     string

	// Guild wiring.
	GuildID        string
	AdminRoleID    string
	VerifiedRoleID string

	VerificationChannelID string
	ApprovalChannelID     string
	LogChannelID          string
	HeartbeatChannelID    string

	// Web server.
	HTTPAddr    string
	RedirectURI string
	ServerURL   string

	// Storage.
	DBPath       string // verified-users JSON document
	EventsDBPath string // sqlite lifecycle event log

	// Presentation.
	EmbedColor  string
	EmbedFooter string

	// Background loops.  SyncInterval 0 = startup/on-demand only.
	HeartbeatInterval time.Duration
	SyncInterval      time.Duration

	// Bound on every external membership call.
	GatewayTimeout time.Duration
}

func FromEnv() Config {
	port := getenvDefault("PORT", "3001")
	addr := port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	serverURL := strings.TrimRight(getenvDefault("SERVER_URL", "http://localhost:3001"), "/")

	return Config{
		ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		BotToken:     os.Getenv("DISCORD_BOT_TOKEN"),

		GuildID:        os.Getenv("GUILD_ID"),
		AdminRoleID:    os.Getenv("ADMIN_ROLE_ID"),
		VerifiedRoleID: os.Getenv("VERIFIED_ROLE_ID"),

		VerificationChannelID: os.Getenv("VERIFICATION_CHANNEL_ID"),
		ApprovalChannelID:     os.Getenv("APPROVAL_CHANNEL_ID"),
		LogChannelID:          os.Getenv("LOG_CHANNEL_ID"),
		HeartbeatChannelID:    os.Getenv("HEARTBEAT_CHANNEL_ID"),

		HTTPAddr:    addr,
		RedirectURI: getenvDefault("REDIRECT_URI", serverURL+"/auth/callback"),
		ServerURL:   serverURL,

		DBPath:       getenvDefault("DB_PATH", "./data/monkey-verified-users.json"),
		EventsDBPath: getenvDefault("EVENTS_DB_PATH", "./data/mboauth-events.db"),

		EmbedColor:  getenvDefault("EMBED_COLOR", "#3eff06"),
		EmbedFooter: getenvDefault("EMBED_FOOTER", "© MonkeyBytes Tech | The Royal Court"),

		HeartbeatInterval: getenvMillis("HEARTBEAT_INTERVAL_MS", 630_000),
		SyncInterval:      getenvMillis("SYNC_INTERVAL_MS", 0),
		GatewayTimeout:    getenvMillis("GATEWAY_TIMEOUT_MS", 10_000),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvMillis(key string, def int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(def) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}
