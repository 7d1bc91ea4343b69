package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/lemonmeet/meet-relay/internal/config"
)

func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProduction {
		if !hasTURN(cfg) {
			logger.Warn("startup warning: no TURN servers configured; clients behind symmetric NATs will fail to connect",
				"warning_code", "no_turn_servers_in_production",
				"ice_servers", len(cfg.ICEServers),
				"mode", cfg.Mode,
			)
		}
		if cfg.DataDir == "" {
			logger.Warn("startup warning: persistence disabled; meeting and chat history will not survive restarts",
				"warning_code", "persistence_disabled_in_production",
				"mode", cfg.Mode,
			)
		}
	}

	// Oversized limits weaken the signaling DoS hardening.
	if cfg.MaxMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-message allocation risk)",
			"warning_code", "max_signaling_message_large",
			"max_signaling_message_bytes", cfg.MaxMessageBytes,
			"mode", cfg.Mode,
		)
	}

	if cfg.TURNREST.Enabled() && cfg.TURNREST.TTL > 24*time.Hour {
		logger.Warn("startup security warning: TURN_REST_TTL is very large (stolen credentials stay valid longer)",
			"warning_code", "turn_rest_ttl_large",
			"turn_rest_ttl", cfg.TURNREST.TTL,
			"mode", cfg.Mode,
		)
	}
}

func hasTURN(cfg config.Config) bool {
	for _, server := range cfg.ICEServers {
		for _, raw := range server.URLs {
			url := strings.TrimSpace(raw)
			if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
				return true
			}
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}
