package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(lookupFrom(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("dev mode should default to text logs, got %q", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("dev mode should default to debug, got %v", cfg.LogLevel)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Errorf("max message bytes = %d", cfg.MaxMessageBytes)
	}
	if cfg.OutboxCapacity != DefaultOutboxCapacity {
		t.Errorf("outbox capacity = %d", cfg.OutboxCapacity)
	}
	if cfg.DataDir != "" {
		t.Errorf("persistence should default off, got %q", cfg.DataDir)
	}
	if cfg.TURNREST.Enabled() {
		t.Error("TURN REST should default off")
	}
}

func TestLoad_ProductionDefaultsToJSONInfo(t *testing.T) {
	cfg, err := load(lookupFrom(map[string]string{envVarMode: "production"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("log format = %q", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	env := map[string]string{
		envVarListenAddr: "127.0.0.1:9999",
		envVarMode:       "production",
	}
	cfg, err := load(lookupFrom(env), []string{"-listen", "0.0.0.0:8443", "-mode", "dev"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:8443" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad mode", map[string]string{envVarMode: "staging"}, "MEET_RELAY_MODE"},
		{"bad log level", map[string]string{envVarLogLevel: "loud"}, "MEET_RELAY_LOG_LEVEL"},
		{"bad listen addr", map[string]string{envVarListenAddr: "no-port"}, "MEET_RELAY_LISTEN_ADDR"},
		{"bad duration", map[string]string{envVarWSIdleTimeout: "soon"}, "SIGNALING_WS_IDLE_TIMEOUT"},
		{"bad int", map[string]string{envVarOutboxCapacity: "lots"}, "OUTBOX_CAPACITY"},
		{"zero capacity", map[string]string{envVarOutboxCapacity: "0"}, "OUTBOX_CAPACITY"},
		{
			"ping not shorter than idle",
			map[string]string{envVarWSPingInterval: "90s"},
			"SIGNALING_WS_PING_INTERVAL",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(lookupFrom(tc.env), nil)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	env := map[string]string{
		envVarAllowedOrigins: "https://app.example.com, http://localhost:3000 ,",
	}
	cfg, err := load(lookupFrom(env), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoad_TURNREST(t *testing.T) {
	env := map[string]string{
		envVarTURNRESTSharedSecret: "s3cret",
		envVarTURNRESTTTL:          "30m",
		envVarTURNURLs:             "turn:turn.example.com:3478",
	}
	cfg, err := load(lookupFrom(env), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.TURNREST.Enabled() {
		t.Fatal("TURN REST should be enabled")
	}
	if cfg.TURNREST.TTL != 30*time.Minute {
		t.Errorf("ttl = %v", cfg.TURNREST.TTL)
	}
	if cfg.TURNREST.UsernamePrefix != DefaultTURNRESTUsernamePrefix {
		t.Errorf("prefix = %q", cfg.TURNREST.UsernamePrefix)
	}
	// TURN REST makes static TURN credentials optional.
	if len(cfg.ICEServers) != 1 {
		t.Fatalf("ice servers = %v", cfg.ICEServers)
	}
}

func TestLoad_TURNWithoutCredentialsRejected(t *testing.T) {
	env := map[string]string{
		envVarTURNURLs: "turn:turn.example.com:3478",
	}
	if _, err := load(lookupFrom(env), nil); err == nil {
		t.Fatal("TURN urls without credentials or TURN REST must be rejected")
	}
}
