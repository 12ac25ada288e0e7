// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	notifystore "github.com/crewfund/crew/internal/app/store/notifications"
	projectstore "github.com/crewfund/crew/internal/app/store/projects"
	txlogstore "github.com/crewfund/crew/internal/app/store/txlog"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/indexes"
	"github.com/crewfund/crew/internal/app/system/tasks"
	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/crewfund/crew/internal/app/system/workers"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Background holds what Startup builds and Shutdown stops.
type Background struct {
	Services  *Services
	Scheduler *tasks.Scheduler
	Relay     *workers.ChangeRelay
}

// relayed lists the collections whose changes go out on the event bus.
var relayed = []string{
	txlogstore.Collection,
	projectstore.Collection,
	notifystore.Collection,
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	svc := newServices(appCfg, deps, logger)
	deps.Background.Services = svc

	if err := ensureAdmin(ctx, svc.Users, appCfg.AdminEmail, logger); err != nil {
		return err
	}

	sched := tasks.NewScheduler(logger)
	var jobs []tasks.Job
	if appCfg.ReconcileSchedule != "" {
		jobs = append(jobs, tasks.ReconcileJob(svc.Ledger, appCfg.ReconcileSchedule, logger))
	}
	if appCfg.ReviewDigestSchedule != "" {
		jobs = append(jobs, tasks.ReviewDigestJob(svc.Verification, svc.Cards, svc.Notify, appCfg.ReviewDigestSchedule, logger))
	}
	if appCfg.IdempotencyPrune != "" {
		prune := tasks.IdempotencyPruneJob(svc.Idempotency, indexes.IdempotencyTTL, logger)
		prune.Schedule = appCfg.IdempotencyPrune
		jobs = append(jobs, prune)
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			logger.Error("schedule job failed", zap.String("job", j.Name), zap.Error(err))
			return err
		}
	}
	sched.Start()
	deps.Background.Scheduler = sched

	relay := workers.NewChangeRelay(deps.Store, deps.Publisher, logger, relayed...)
	relay.Start()
	deps.Background.Relay = relay

	logger.Info("background work started",
		zap.Strings("jobs", sched.Jobs()),
		zap.Strings("relayed", relayed))
	return nil
}

// ensureAdmin promotes the account registered under email to Administrator.
// Nothing is created: the account appears once that person signs up.
func ensureAdmin(ctx context.Context, users *userstore.Store, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		logger.Warn("admin_email has no account yet; sign up and restart to promote it",
			zap.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}
	if u.Role == models.RoleAdministrator {
		return nil
	}
	if err := users.SetRole(ctx, u.ID, models.RoleAdministrator); err != nil {
		return err
	}
	logger.Info("promoted account to administrator",
		zap.String("user_id", u.ID), zap.String("email", email))
	return nil
}
