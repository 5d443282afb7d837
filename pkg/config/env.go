package config

const (
	EnvPrefix = "SELLERHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv    = "SELLERHUB_APP_ENV"
	EnvPort      = "SELLERHUB_APP_PORT"
	EnvLogLevel  = "SELLERHUB_LOG_LEVEL"
	EnvLogFormat = "SELLERHUB_LOG_FORMAT"

	EnvDBDSN    = "SELLERHUB_DB_DSN"
	EnvDBDriver = "SELLERHUB_DB_DRIVER"
	EnvDBHost   = "SELLERHUB_DB_HOST"
	EnvDBPort   = "SELLERHUB_DB_PORT"
	EnvDBUser   = "SELLERHUB_DB_USER"
	EnvDBPass   = "SELLERHUB_DB_PASSWORD"
	EnvDBSSL    = "SELLERHUB_DB_SSLMODE"
	EnvDBName   = "SELLERHUB_DB_NAME"

	EnvRedisURL = "SELLERHUB_REDIS_URL"

	EnvJWTSecret  = "SELLERHUB_JWT_SECRET"
	EnvJWTIssuer  = "SELLERHUB_JWT_ISSUER"
	EnvJWTExpMins = "SELLERHUB_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID       = "SELLERHUB_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "SELLERHUB_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub    = "SELLERHUB_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvPricingTargetValue = "SELLERHUB_PRICING_TARGET_VALUE"
	EnvViewCacheTTL       = "SELLERHUB_CATALOG_VIEW_CACHE_TTL"
	EnvCORSOrigins        = "SELLERHUB_CORS_ALLOWED_ORIGINS"
)
