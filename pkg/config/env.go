package config

const (
	EnvPrefix = "DRIVE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "DRIVE_APP_ENV"
	EnvPort   = "DRIVE_APP_PORT"

	EnvDBDSN        = "DRIVE_DB_DSN"
	EnvDBHost       = "DRIVE_DB_HOST"
	EnvDBUser       = "DRIVE_DB_USER"
	EnvDBName       = "DRIVE_DB_NAME"
	EnvDBSQLitePath = "DRIVE_DB_SQLITE_PATH"
	EnvUseSQLite    = "DRIVE_USE_SQLITE"

	EnvRedisURL = "DRIVE_REDIS_URL"

	EnvCompetitiveCutoff     = "DRIVE_DISPATCH_COMPETITIVE_CUTOFF"
	EnvEmergencyWindow       = "DRIVE_DISPATCH_EMERGENCY_WINDOW"
	EnvDefaultGraceMinutes   = "DRIVE_DISPATCH_DEFAULT_GRACE_MINUTES"
	EnvResolveMaxRetries     = "DRIVE_DISPATCH_RESOLVE_MAX_RETRIES"
	EnvResolveRetryBackoff   = "DRIVE_DISPATCH_RESOLVE_RETRY_BACKOFF"
	EnvDefaultEmergencyBonus = "DRIVE_DISPATCH_DEFAULT_EMERGENCY_BONUS"
	EnvDefaultTimezone       = "DRIVE_DISPATCH_DEFAULT_TIMEZONE"

	EnvCronCloseWindows = "DRIVE_CRON_CLOSE_WINDOWS_INTERVAL"
	EnvCronNoShow       = "DRIVE_CRON_NO_SHOW_INTERVAL"

	EnvIdempotencyTTL = "DRIVE_IDEMPOTENCY_TTL"

	EnvPubSubProjectID = "DRIVE_GCP_PROJECT_ID"
	EnvPubSubTopic     = "DRIVE_PUBSUB_NOTIFICATION_TOPIC"
)
