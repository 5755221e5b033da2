// Package config loads and validates the wagate YAML configuration.
//
// Configuration files support ${VAR_NAME} environment variable expansion and
// Go duration strings for time-valued fields:
//
//	environment: production
//	storage:
//	  session_root: /app/data/sessions
//	  persistent_mount: /app/data
//	  backup_dir: /app/data/session-backups
//	database:
//	  path: /app/data/wagate.db
//	queue:
//	  path: /app/data/jobs.db
//	auth:
//	  qr_timeout: 30s
//	reconnect:
//	  max_attempts: 10
//	  base_delay: 5s
//	  max_delay: 60s
//	  backoff_multiplier: 1.5
//	sessions:
//	  retention_days: 30
//	  sweep_interval: 24h
//	  metadata_ttl: 1h
//	logging:
//	  level: info
//	  format: text
//
// Unset optional fields receive defaults; Load fails on missing required
// fields so a misconfigured process never starts half-wired.
package config
