// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/domain/money"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for crew.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CREW_MONGO_URI, CREW_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: "mongo", Desc: "Document store: 'mongo' or 'memory'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017/?replicaSet=rs0", Desc: "MongoDB connection URI (transactions need a replica set)"},
	{Name: "mongo_database", Default: "crew", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "crew-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "crew/", Desc: "S3 key prefix"},
	{Name: "storage_url_ttl", Default: "15m", Desc: "Lifetime of presigned S3 URLs"},

	{Name: "amqp_url", Default: "", Desc: "RabbitMQ URL for change events (blank logs them instead)"},
	{Name: "amqp_exchange", Default: "crew.events", Desc: "Topic exchange for change events"},
	{Name: "redis_addr", Default: "", Desc: "Redis address for shared login throttling (blank keeps it in process)"},

	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL, used for OAuth callbacks"},

	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Staff action logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "min_recharge", Default: "100", Desc: "Smallest wallet recharge"},
	{Name: "max_recharge", Default: "5000", Desc: "Largest wallet recharge"},
	{Name: "max_projects_per_week", Default: 3, Desc: "Projects one creator may publish per window"},
	{Name: "project_window", Default: "168h", Desc: "Rolling window for the publish limit"},
	{Name: "txn_max_attempts", Default: 5, Desc: "Attempts per ledger transaction on write conflicts"},
	{Name: "txn_base_delay", Default: "20ms", Desc: "First retry backoff for ledger transactions"},

	{Name: "reconcile_schedule", Default: "@every 1h", Desc: "Cron spec for ledger reconciliation (blank disables)"},
	{Name: "review_digest_schedule", Default: "0 9 * * *", Desc: "Cron spec for the pending-review digest (blank disables)"},
	{Name: "idempotency_prune_schedule", Default: "@every 6h", Desc: "Cron spec for pruning idempotency records (blank disables)"},

	{Name: "admin_email", Default: "", Desc: "Account promoted to Administrator on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CREW", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	minRecharge, err := money.Parse(appValues.String("min_recharge"))
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("min_recharge: %w", err)
	}
	maxRecharge, err := money.Parse(appValues.String("max_recharge"))
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("max_recharge: %w", err)
	}

	appCfg := AppConfig{
		StoreBackend:     strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		StorageType:      strings.ToLower(strings.TrimSpace(appValues.String("storage_type"))),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),
		StorageS3Region:  appValues.String("storage_s3_region"),
		StorageS3Bucket:  appValues.String("storage_s3_bucket"),
		StorageS3Prefix:  appValues.String("storage_s3_prefix"),
		StorageURLTTL:    appValues.Duration("storage_url_ttl", 15*time.Minute),

		AMQPURL:      appValues.String("amqp_url"),
		AMQPExchange: appValues.String("amqp_exchange"),
		RedisAddr:    appValues.String("redis_addr"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),
		BaseURL:            strings.TrimSuffix(appValues.String("base_url"), "/"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		MinRecharge:        minRecharge,
		MaxRecharge:        maxRecharge,
		MaxProjectsPerWeek: appValues.Int("max_projects_per_week"),
		ProjectWindow:      appValues.Duration("project_window", 7*24*time.Hour),
		TxnMaxAttempts:     appValues.Int("txn_max_attempts"),
		TxnBaseDelay:       appValues.Duration("txn_base_delay", 20*time.Millisecond),

		ReconcileSchedule:    appValues.String("reconcile_schedule"),
		ReviewDigestSchedule: appValues.String("review_digest_schedule"),
		IdempotencyPrune:     appValues.String("idempotency_prune_schedule"),

		AdminEmail: strings.TrimSpace(appValues.String("admin_email")),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.StoreBackend {
	case backendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
	case backendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			return fmt.Errorf("store_backend 'memory' is not allowed in prod")
		}
	default:
		return fmt.Errorf("store_backend must be 'mongo' or 'memory', got %q", appCfg.StoreBackend)
	}

	if appCfg.MinRecharge <= 0 || appCfg.MinRecharge > appCfg.MaxRecharge {
		return fmt.Errorf("recharge bounds must satisfy 0 < min_recharge <= max_recharge (got %s, %s)",
			appCfg.MinRecharge, appCfg.MaxRecharge)
	}
	if appCfg.MaxProjectsPerWeek <= 0 || appCfg.ProjectWindow <= 0 {
		return fmt.Errorf("max_projects_per_week and project_window must be positive")
	}

	switch appCfg.StorageType {
	case "local":
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			return fmt.Errorf("storage_type 's3' requires storage_s3_bucket and storage_s3_region")
		}
	default:
		return fmt.Errorf("storage_type must be 'local' or 's3', got %q", appCfg.StorageType)
	}

	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return fmt.Errorf("google_client_id and google_client_secret must be set together")
	}
	return nil
}
