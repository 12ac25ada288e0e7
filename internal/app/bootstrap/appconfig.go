// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/crewfund/crew/internal/domain/money"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from environment variables (CREW_*), configuration files or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework side: ports, TLS, logging level, CORS and body limits.
type AppConfig struct {
	// Document store
	StoreBackend     string // "mongo" or "memory"
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64

	// Session management
	SessionKey    string
	SessionName   string
	SessionDomain string
	SessionMaxAge time.Duration

	// Blob storage for project images and identity documents
	StorageType      string // "local" or "s3"
	StorageLocalPath string
	StorageLocalURL  string
	StorageS3Region  string
	StorageS3Bucket  string
	StorageS3Prefix  string
	StorageURLTTL    time.Duration

	// Change-feed export; blank AMQPURL logs events instead
	AMQPURL      string
	AMQPExchange string

	// Shared login throttling; blank keeps counters in process
	RedisAddr string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	BaseURL            string // e.g. "https://crew.example.com"

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth  string
	AuditLogAdmin string

	// Ledger and project rules
	MinRecharge        money.Cents
	MaxRecharge        money.Cents
	MaxProjectsPerWeek int
	ProjectWindow      time.Duration
	TxnMaxAttempts     int
	TxnBaseDelay       time.Duration

	// Scheduled jobs (cron specs); blank disables the job
	ReconcileSchedule    string
	ReviewDigestSchedule string
	IdempotencyPrune     string

	// AdminEmail is promoted to Administrator on startup once it has an account.
	AdminEmail string
}
