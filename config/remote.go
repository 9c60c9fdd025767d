package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// IntegrationConfig holds every tunable of the remote training-records
// integration. Values are read from the environment on each load so
// operational changes only need a process restart, matching the rest of the
// configuration.
type IntegrationConfig struct {
	RemoteBaseURL string
	BearerToken   string
	WebhookSecret string

	SyncMaxAttempts   int
	SyncBaseBackoff   time.Duration
	SyncMaxBackoff    time.Duration
	SyncPageSize      int
	SyncLookback      time.Duration
	SyncScheduleEvery time.Duration

	// Entity types for which the remote API supports a reliable updated_since
	// filter. Types absent from this list fall back to full sync even when an
	// incremental run is requested.
	IncrementalTypes map[string]bool

	WebhookMaxAttempts   int
	WebhookWorkers       int
	WebhookRetention     time.Duration
	DeadLetterNotifyMail string
}

// LoadIntegrationConfig reads the remote integration settings from the environment.
func LoadIntegrationConfig() *IntegrationConfig {
	cfg := &IntegrationConfig{
		RemoteBaseURL: strings.TrimRight(os.Getenv("REMOTE_BASE_URL"), "/"),
		BearerToken:   os.Getenv("REMOTE_BEARER_TOKEN"),
		WebhookSecret: os.Getenv("REMOTE_WEBHOOK_SECRET"),

		SyncMaxAttempts:   envInt("SYNC_MAX_ATTEMPTS", 5),
		SyncBaseBackoff:   time.Duration(envInt("SYNC_BASE_BACKOFF_MS", 500)) * time.Millisecond,
		SyncMaxBackoff:    time.Duration(envInt("SYNC_MAX_BACKOFF_MS", 30000)) * time.Millisecond,
		SyncPageSize:      envInt("SYNC_PAGE_SIZE", 50),
		SyncLookback:      time.Duration(envInt("SYNC_LOOKBACK_MINUTES", 5)) * time.Minute,
		SyncScheduleEvery: time.Duration(envInt("SYNC_SCHEDULE_MINUTES", 0)) * time.Minute,

		IncrementalTypes: make(map[string]bool),

		WebhookMaxAttempts:   envInt("WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookWorkers:       envInt("WEBHOOK_WORKERS", 4),
		WebhookRetention:     time.Duration(envInt("WEBHOOK_RETENTION_DAYS", 30)) * 24 * time.Hour,
		DeadLetterNotifyMail: os.Getenv("DEADLETTER_NOTIFY_EMAIL"),
	}

	incremental := os.Getenv("SYNC_INCREMENTAL_TYPES")
	if incremental == "" {
		incremental = "trainee,program,assessment,document"
	}
	for _, t := range strings.Split(incremental, ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.IncrementalTypes[t] = true
		}
	}

	return cfg
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
