// internal/app/bootstrap/services.go
package bootstrap

import (
	"github.com/crewfund/crew/internal/app/services/cards"
	"github.com/crewfund/crew/internal/app/services/ledger"
	"github.com/crewfund/crew/internal/app/services/moderation"
	"github.com/crewfund/crew/internal/app/services/notify"
	"github.com/crewfund/crew/internal/app/services/projects"
	"github.com/crewfund/crew/internal/app/services/verification"
	"github.com/crewfund/crew/internal/app/store/audit"
	credentialstore "github.com/crewfund/crew/internal/app/store/credentials"
	idempotencystore "github.com/crewfund/crew/internal/app/store/idempotency"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/auditlog"
	"github.com/crewfund/crew/internal/app/system/txn"
	"go.uber.org/zap"
)

// Services is every store and domain service the handlers and jobs share.
type Services struct {
	Users       *userstore.Store
	Credentials *credentialstore.Store
	AuditEvents *audit.Store
	Idempotency *idempotencystore.Store
	AuditLog    *auditlog.Logger

	Notify       *notify.Dispatcher
	Inbox        *notify.Inbox
	Ledger       *ledger.Service
	Projects     *projects.Service
	Cards        *cards.Service
	Moderation   *moderation.Service
	Verification *verification.Service
}

func newServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *Services {
	ds := deps.Store
	events := audit.New(ds)
	auditLog := auditlog.New(events, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	dispatcher := notify.NewDispatcher(ds, logger)

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.MinRecharge = appCfg.MinRecharge
	ledgerCfg.MaxRecharge = appCfg.MaxRecharge
	ledgerCfg.Retry = txn.DefaultPolicy
	if appCfg.TxnMaxAttempts > 0 {
		ledgerCfg.Retry.MaxAttempts = appCfg.TxnMaxAttempts
	}
	if appCfg.TxnBaseDelay > 0 {
		ledgerCfg.Retry.BaseDelay = appCfg.TxnBaseDelay
	}

	projCfg := projects.DefaultConfig()
	projCfg.Window = appCfg.ProjectWindow
	projCfg.MaxPerWindow = appCfg.MaxProjectsPerWeek

	return &Services{
		Users:       userstore.New(ds),
		Credentials: credentialstore.New(ds),
		AuditEvents: events,
		Idempotency: idempotencystore.New(ds),
		AuditLog:    auditLog,

		Notify:       dispatcher,
		Inbox:        notify.NewInbox(ds, logger),
		Ledger:       ledger.New(ds, dispatcher, auditLog, logger, ledgerCfg),
		Projects:     projects.New(ds, deps.Blobs, dispatcher, logger, projCfg),
		Cards:        cards.New(ds, dispatcher, auditLog, logger, nil),
		Moderation:   moderation.New(ds, dispatcher, auditLog, logger),
		Verification: verification.New(ds, deps.Blobs, dispatcher, auditLog, logger),
	}
}
