package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	LogLevel    slog.Level

	NATSURL           string
	NATSSubjectPrefix string

	VotingTimeout      time.Duration
	PolicyFile         string
	CostAutoApprove    *float64
	CostAutoReject     *float64
	EnableRemoteVoters bool
	VoterURLs          map[string]string
	RemoteVoterTimeout time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int

	OutboxRelayInAPI     bool
	OutboxPollInterval   time.Duration
	PendingSweepInterval time.Duration
	PendingSweepGrace    time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "pentarchy"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	subjectPrefix := strings.Trim(strings.TrimSpace(os.Getenv("NATS_SUBJECT_PREFIX")), ".")
	if subjectPrefix == "" {
		subjectPrefix = "governance"
	}

	cfg := Config{
		ServiceName:       service,
		HTTPPort:          port,
		PostgresDSN:       strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		NATSURL:           strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSSubjectPrefix: subjectPrefix,
		PolicyFile:        strings.TrimSpace(os.Getenv("GOVERNANCE_POLICY_FILE")),

		EnableRemoteVoters: envBool("ENABLE_REMOTE_VOTERS", false),
		VoterURLs:          voterURLs(os.Environ()),
		OutboxRelayInAPI:   envBool("OUTBOX_RELAY_IN_API", true),
	}

	var err error
	if cfg.LogLevel, err = envLogLevel("LOG_LEVEL", slog.LevelInfo); err != nil {
		return Config{}, err
	}
	if cfg.VotingTimeout, err = envDuration("VOTING_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RemoteVoterTimeout, err = envDuration("REMOTE_VOTER_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = envDuration("OUTBOX_POLL_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PendingSweepInterval, err = envDuration("PENDING_SWEEP_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PendingSweepGrace, err = envDuration("PENDING_SWEEP_GRACE", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = envInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.CostAutoApprove, err = envFloat("COST_AUTO_APPROVE_BELOW"); err != nil {
		return Config{}, err
	}
	if cfg.CostAutoReject, err = envFloat("COST_AUTO_REJECT_AT_OR_ABOVE"); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return value, nil
}

// envFloat returns nil when the variable is unset so callers can fall back to
// the policy file.
func envFloat(name string) (*float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return &value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", name, raw)
	}
	return value, nil
}

func envLogLevel(name string, fallback slog.Level) (slog.Level, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return level, nil
}

// voterURLs collects VOTER_<ID>_URL variables keyed by lower-case voter id.
func voterURLs(environ []string) map[string]string {
	urls := make(map[string]string)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, "VOTER_") || !strings.HasSuffix(key, "_URL") {
			continue
		}
		id := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(key, "VOTER_"), "_URL"))
		value = strings.TrimSpace(value)
		if id == "" || value == "" {
			continue
		}
		urls[id] = value
	}
	return urls
}
