package config

const EnvPrefix = "MAILMAVEN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MAILMAVEN_APP_ENV"
	EnvPort     = "MAILMAVEN_APP_PORT"
	EnvLogLevel = "MAILMAVEN_LOG_LEVEL"

	EnvDBDSN  = "MAILMAVEN_DB_DSN"
	EnvDBHost = "MAILMAVEN_DB_HOST"
	EnvDBUser = "MAILMAVEN_DB_USER"
	EnvDBName = "MAILMAVEN_DB_NAME"

	EnvRedisURL = "MAILMAVEN_REDIS_URL"

	EnvJWTSecret = "MAILMAVEN_JWT_SECRET"
	EnvJWTIssuer = "MAILMAVEN_JWT_ISSUER"

	EnvEmailBaseURL = "MAILMAVEN_EMAIL_BASE_URL"
	EnvEmailSender  = "MAILMAVEN_EMAIL_SENDER"
	EnvEmailTimeout = "MAILMAVEN_EMAIL_TIMEOUT"

	EnvDeliveryWorkers = "MAILMAVEN_DELIVERY_WORKERS"
)

// legacyDBEnvVars are the discrete connection settings accepted when no DSN is set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
