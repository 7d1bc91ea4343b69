// Package config loads the relay's runtime configuration from environment
// variables, with a small set of command-line flags layered on top.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	envVarListenAddr      = "MEET_RELAY_LISTEN_ADDR"
	envVarMode            = "MEET_RELAY_MODE"
	envVarLogFormat       = "MEET_RELAY_LOG_FORMAT"
	envVarLogLevel        = "MEET_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "MEET_RELAY_SHUTDOWN_TIMEOUT"
	envVarDataDir         = "MEET_RELAY_DATA_DIR"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// Signaling socket hardening.
	envVarMaxMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarWSIdleTimeout        = "SIGNALING_WS_IDLE_TIMEOUT"
	envVarWSPingInterval       = "SIGNALING_WS_PING_INTERVAL"
	envVarOutboxCapacity       = "OUTBOX_CAPACITY"

	// Persistence sink.
	envVarStoreQueueSize = "STORE_QUEUE_SIZE"

	// coturn TURN REST (ephemeral) credentials.
	envVarTURNRESTSharedSecret   = "TURN_REST_SHARED_SECRET"
	envVarTURNRESTTTL            = "TURN_REST_TTL"
	envVarTURNRESTUsernamePrefix = "TURN_REST_USERNAME_PREFIX"
)

const (
	DefaultListenAddr           = "127.0.0.1:8080"
	DefaultShutdownTimeout      = 15 * time.Second
	DefaultMode            Mode = ModeDev

	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50
	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 20 * time.Second

	// DefaultOutboxCapacity bounds how many undelivered events one connection
	// may have queued before senders see backpressure.
	DefaultOutboxCapacity = 64

	DefaultStoreQueueSize = 256

	DefaultTURNRESTTTL            = time.Hour
	DefaultTURNRESTUsernamePrefix = "meet"
)

type Mode string

const (
	ModeDev        Mode = "dev"
	ModeProduction Mode = "production"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type TurnRESTConfig struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string
}

func (c TurnRESTConfig) Enabled() bool {
	return strings.TrimSpace(c.SharedSecret) != ""
}

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// AllowedOrigins restricts which browser origins may open the signaling
	// socket. Empty means same-host only; "*" disables the check.
	AllowedOrigins []string

	// DataDir is the Badger directory for meeting/chat records. Empty
	// disables persistence entirely.
	DataDir        string
	StoreQueueSize int

	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	WSIdleTimeout        time.Duration
	WSPingInterval       time.Duration
	OutboxCapacity       int

	ICEServers []webrtc.ICEServer
	TURNREST   TurnRESTConfig
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	modeStr := envOrDefault(lookup, envVarMode, string(DefaultMode))

	cfg := Config{
		ListenAddr: envOrDefault(lookup, envVarListenAddr, DefaultListenAddr),
		DataDir:    envOrDefault(lookup, envVarDataDir, ""),
	}

	logFormatStr := envOrDefault(lookup, envVarLogFormat, defaultLogFormatForMode(modeStr))
	logLevelStr := envOrDefault(lookup, envVarLogLevel, defaultLogLevelForMode(modeStr))

	fs := flag.NewFlagSet("meet-relay", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "listen address (host:port)")
	fs.StringVar(&modeStr, "mode", modeStr, "dev or production")
	fs.StringVar(&logFormatStr, "log-format", logFormatStr, "log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelStr, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for meeting/chat records (empty disables persistence)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	switch Mode(modeStr) {
	case ModeDev, ModeProduction:
		cfg.Mode = Mode(modeStr)
	default:
		return Config{}, fmt.Errorf("invalid %s %q: must be %q or %q", envVarMode, modeStr, ModeDev, ModeProduction)
	}

	switch LogFormat(logFormatStr) {
	case LogFormatText, LogFormatJSON:
		cfg.LogFormat = LogFormat(logFormatStr)
	default:
		return Config{}, fmt.Errorf("invalid %s %q: must be %q or %q", envVarLogFormat, logFormatStr, LogFormatText, LogFormatJSON)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevelStr)); err != nil {
		return Config{}, fmt.Errorf("invalid %s %q: %w", envVarLogLevel, logLevelStr, err)
	}
	cfg.LogLevel = level

	var err error
	if cfg.ShutdownTimeout, err = envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdownTimeout); err != nil {
		return Config{}, err
	}

	cfg.AllowedOrigins = splitCommaSeparated(envOrDefault(lookup, envVarAllowedOrigins, ""))

	maxBytes, err := envIntOrDefault(lookup, envVarMaxMessageBytes, int(DefaultMaxMessageBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMessageBytes = int64(maxBytes)
	if cfg.MaxMessagesPerSecond, err = envIntOrDefault(lookup, envVarMaxMessagesPerSecond, DefaultMaxMessagesPerSecond); err != nil {
		return Config{}, err
	}
	if cfg.WSIdleTimeout, err = envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WSPingInterval, err = envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval); err != nil {
		return Config{}, err
	}
	if cfg.OutboxCapacity, err = envIntOrDefault(lookup, envVarOutboxCapacity, DefaultOutboxCapacity); err != nil {
		return Config{}, err
	}
	if cfg.StoreQueueSize, err = envIntOrDefault(lookup, envVarStoreQueueSize, DefaultStoreQueueSize); err != nil {
		return Config{}, err
	}

	cfg.TURNREST = TurnRESTConfig{
		SharedSecret:   envOrDefault(lookup, envVarTURNRESTSharedSecret, ""),
		UsernamePrefix: envOrDefault(lookup, envVarTURNRESTUsernamePrefix, DefaultTURNRESTUsernamePrefix),
	}
	if cfg.TURNREST.TTL, err = envDurationOrDefault(lookup, envVarTURNRESTTTL, DefaultTURNRESTTTL); err != nil {
		return Config{}, err
	}

	if cfg.ICEServers, err = loadICEServers(lookup, cfg.TURNREST.Enabled()); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid %s %q: %w", envVarListenAddr, c.ListenAddr, err)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("%s must be positive", envVarMaxMessageBytes)
	}
	if c.MaxMessagesPerSecond <= 0 {
		return fmt.Errorf("%s must be positive", envVarMaxMessagesPerSecond)
	}
	if c.OutboxCapacity <= 0 {
		return fmt.Errorf("%s must be positive", envVarOutboxCapacity)
	}
	if c.StoreQueueSize <= 0 {
		return fmt.Errorf("%s must be positive", envVarStoreQueueSize)
	}
	if c.WSPingInterval >= c.WSIdleTimeout {
		return fmt.Errorf("%s must be shorter than %s", envVarWSPingInterval, envVarWSIdleTimeout)
	}
	return nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	return slog.New(handler), nil
}

func defaultLogFormatForMode(mode string) string {
	if Mode(mode) == ModeProduction {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode string) string {
	if Mode(mode) == ModeProduction {
		return "info"
	}
	return "debug"
}

func envOrDefault(lookup func(string) (string, bool), key, def string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envIntOrDefault(lookup func(string) (string, bool), key string, def int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, def time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func splitCommaSeparated(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
