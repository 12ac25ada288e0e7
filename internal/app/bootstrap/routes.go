// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	auditlogfeature "github.com/crewfund/crew/internal/app/features/auditlog"
	authgooglefeature "github.com/crewfund/crew/internal/app/features/authgoogle"
	cardsfeature "github.com/crewfund/crew/internal/app/features/cards"
	errorsfeature "github.com/crewfund/crew/internal/app/features/errors"
	healthfeature "github.com/crewfund/crew/internal/app/features/health"
	loginfeature "github.com/crewfund/crew/internal/app/features/login"
	logoutfeature "github.com/crewfund/crew/internal/app/features/logout"
	notificationsfeature "github.com/crewfund/crew/internal/app/features/notifications"
	profilefeature "github.com/crewfund/crew/internal/app/features/profile"
	projectsfeature "github.com/crewfund/crew/internal/app/features/projects"
	reportsfeature "github.com/crewfund/crew/internal/app/features/reports"
	systemusersfeature "github.com/crewfund/crew/internal/app/features/systemusers"
	verificationfeature "github.com/crewfund/crew/internal/app/features/verification"
	walletfeature "github.com/crewfund/crew/internal/app/features/wallet"
	userstore "github.com/crewfund/crew/internal/app/store/users"
	"github.com/crewfund/crew/internal/app/system/auth"
	"github.com/crewfund/crew/internal/app/system/blob"
	"github.com/crewfund/crew/internal/app/system/ratelimit"
	"github.com/crewfund/crew/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Everything under /api speaks JSON.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Background.Services
	if svc == nil {
		return nil, fmt.Errorf("services not initialized; Startup must run first")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Role changes and removed accounts take effect on the next request.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(svc.Users))

	errorsHandler := errorsfeature.NewHandler(logger)

	r := chi.NewRouter()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(deps.Store, deps.Backend, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Local uploads; S3 hands out presigned URLs instead.
	if local, ok := deps.Blobs.(*blob.Local); ok {
		files := http.StripPrefix(local.URLPrefix, local.Handler())
		r.Route(local.URLPrefix, func(fr chi.Router) {
			fr.With(sessionMgr.RequireRole(staffRoles...)).Handle("/"+blob.IdentityPrefix+"*", files)
			fr.Handle("/*", files)
		})
	}

	// Authentication
	loginHandler := loginfeature.NewHandler(sessionMgr, svc.Users, svc.Credentials, loginLimiter(deps, logger), svc.AuditLog, logger)
	r.Mount("/auth", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.AuditLog, logger)
	r.Mount("/auth/logout", logoutfeature.Routes(logoutHandler))

	googleHandler := authgooglefeature.NewHandler(sessionMgr, svc.Users, svc.AuditLog,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, []byte(appCfg.SessionKey), logger)
	if googleHandler.IsConfigured() {
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	} else {
		logger.Info("Google sign-in disabled; google_client_id not set")
	}

	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	r.Route("/api", func(api chi.Router) {
		// Browsing is public; the feature guards its own writes.
		projectsHandler := projectsfeature.NewHandler(svc.Projects, svc.Ledger, deps.Blobs, logger)
		api.Mount("/projects", projectsfeature.Routes(projectsHandler, sessionMgr))

		api.Group(func(pr chi.Router) {
			pr.Use(sessionMgr.RequireSignedIn)

			pr.Mount("/me", profilefeature.Routes(profilefeature.NewHandler(svc.Users, svc.Projects, logger)))
			pr.Mount("/wallet", walletfeature.Routes(walletfeature.NewHandler(svc.Ledger, logger)))
			pr.Mount("/cards", cardsfeature.Routes(cardsfeature.NewHandler(svc.Cards, logger), sessionMgr))
			pr.Mount("/verification", verificationfeature.Routes(verificationfeature.NewHandler(svc.Verification, logger), sessionMgr))
			pr.Mount("/reports", reportsfeature.Routes(reportsfeature.NewHandler(svc.Moderation, logger), sessionMgr))
			pr.Mount("/notifications", notificationsfeature.Routes(notificationsfeature.NewHandler(svc.Inbox, logger), sessionMgr))
		})

		// Administration
		sysUsersHandler := systemusersfeature.NewHandler(svc.Moderation, svc.Users, logger)
		api.Mount("/admin/users", systemusersfeature.Routes(sysUsersHandler, sessionMgr))

		auditHandler := auditlogfeature.NewHandler(svc.AuditEvents, logger)
		api.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))
	})

	return r, nil
}

var staffRoles = []string{string(models.RoleModerator), string(models.RoleAdministrator)}

// loginLimiter shares throttling counters through Redis when it is
// configured, so every instance sees the same attempts.
func loginLimiter(deps DBDeps, logger *zap.Logger) *ratelimit.LoginLimiter {
	if deps.Redis == nil {
		return ratelimit.NewLoginLimiter()
	}
	return ratelimit.NewLoginLimiterWith(
		ratelimit.NewRedisLimiter(deps.Redis, "crew:login:ip", 10, time.Minute),
		ratelimit.NewRedisLimiter(deps.Redis, "crew:login:email", 5, 5*time.Minute),
		logger,
	)
}
