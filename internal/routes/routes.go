package routes

import (
	"net/http"
	"time"

	csrf "filippo.io/csrf/gorilla"
	"github.com/alexedwards/scs/v2"
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/auth"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/documents"
	"github.com/lijuniwawanah-jpg/docvault/internal/handlers"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
	"github.com/lijuniwawanah-jpg/docvault/internal/middleware"
	"github.com/lijuniwawanah-jpg/docvault/internal/share"
	"github.com/lijuniwawanah-jpg/docvault/internal/storage"
)

// Setup wires the API routes and middleware onto the provided chi.Router.
//
// CSRF protection uses filippo.io/csrf, which validates Fetch Metadata
// headers (Sec-Fetch-Site, Origin) rather than double-submit tokens.
// Requests without those headers (curl, API clients, mobile apps) pass
// through: such clients do not attach cookies automatically and so cannot
// be exploited via CSRF. Bearer-token routes carry no cookies at all and
// skip the middleware entirely.
//
// Returns the trash handler so main can stop its sweep worker on shutdown.
func Setup(r chi.Router, db *gorm.DB, cfg *config.Config, backend storage.Backend, sessionManager *scs.SessionManager, version string) *handlers.TrashHandler {
	recorder := audit.NewRecorder(db)
	docService := documents.NewService(db, cfg, backend, recorder)
	issuer := share.NewIssuer(db, cfg, recorder)

	authHandler := handlers.NewAuthHandler(db, cfg, sessionManager, recorder)
	documentHandler := handlers.NewDocumentHandler(docService, cfg)
	trashHandler := handlers.NewTrashHandler(docService, cfg)
	shareHandler := handlers.NewShareHandler(issuer, docService)
	adminHandler := handlers.NewAdminHandler(db, issuer, recorder)
	healthHandler := handlers.NewHealthHandler(db, backend, version)

	// 5 attempts per 15 minutes per IP on credential endpoints
	authRateLimiter := tollbooth.NewLimiter(5.0/15.0, &limiter.ExpirableOptions{
		DefaultExpirationTTL: 15 * time.Minute,
	})
	authRateLimiter.SetMessage(`{"success":false,"error":"too many requests, try again later"}`)
	authRateLimiter.SetMessageContentType("application/json")

	rateLimit := func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(authRateLimiter, next)
	}

	var csrfMiddleware func(http.Handler) http.Handler
	if cfg.CSRFEnabled {
		// The authKey must be exactly 32 bytes and persist across restarts.
		csrfMiddleware = csrf.Protect(
			[]byte(cfg.SessionSecret),
			csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Warn("csrf validation failed",
					"reason", csrf.FailureReason(r),
					"method", r.Method,
					"path", r.URL.Path,
				)
				httpjson.Error(w, http.StatusForbidden, "cross-site request rejected")
			})),
		)
	} else {
		csrfMiddleware = func(next http.Handler) http.Handler {
			return next
		}
	}

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(middleware.NotFoundHandler)

	// Credential endpoints: rate limited, no auth required
	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(rateLimit)
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/request_otp", authHandler.RequestOTP)
		r.Post("/auth/verify_otp", authHandler.VerifyOTP)
	})

	// Public share download: the share token is the credential
	r.Get("/share/download", shareHandler.SharedDownload)

	// Authenticated endpoints: session cookie or bearer token
	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(csrfMiddleware)

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/users/me", authHandler.Me)

		r.Post("/documents/upload", documentHandler.Upload)
		r.Get("/documents/list", documentHandler.List)
		r.Get("/documents/download", documentHandler.Download)
		r.Post("/documents/delete", documentHandler.Delete)

		r.Get("/documents/trash", trashHandler.ListTrash)
		r.Get("/documents/restore", trashHandler.Restore)
		r.Get("/documents/delete_forever", trashHandler.DeleteForever)
		r.Post("/documents/trash/empty", trashHandler.EmptyTrash)

		r.Post("/share/create_link", shareHandler.CreateLink)
		r.Get("/share/links/{id}", shareHandler.GetLink)
	})

	// Admin endpoints: authenticated + role re-checked per request
	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(auth.RequireAdmin(db))
		r.Get("/admin/stats", adminHandler.Stats)
		r.Get("/admin/recent_logs", adminHandler.RecentLogs)
		r.Get("/admin/search", adminHandler.Search)
	})

	return trashHandler
}
