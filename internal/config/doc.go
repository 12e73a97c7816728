// Package config handles configuration loading for lexgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. A .env file in the working directory is applied first, so
// secrets can live outside the config file.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${LEXGATE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	chat:
//	  open_timeout: "10s"
//	  reconnect_initial: "2s"
//	  reconnect_max: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  shutdown_timeout: "15s"
//
// Database:
//
//	database:
//	  path: "/var/lib/lexgate/lexgate.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${LEXGATE_JWT_SECRET}"  # Required
//	  token_ttl: "24h"
//
// Conversation sessions:
//
//	chat:
//	  open_timeout: "10s"
//	  history_limit: 500
//	  reconnect_initial: "2s"
//	  reconnect_max: "30s"
//	  reconnect_attempts: 10
//
// Webhooks:
//
//	webhooks:
//	  secret: "${LEXGATE_WEBHOOK_SECRET}"  # Endpoints disabled when empty
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
//	cfg, err := config.Load("/etc/lexgate/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
