package auth

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"gorm.io/gorm"
)

// NewSessionManager creates and configures an scs session manager backed by
// the application database. Password logins are tracked through these
// server-side sessions; OTP logins use bearer tokens instead.
func NewSessionManager(db *gorm.DB, cfg *config.Config) (*scs.SessionManager, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	lifetime, err := time.ParseDuration(cfg.SessionDuration)
	if err != nil {
		lifetime = 168 * time.Hour // Default: 7 days
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = lifetime
	sessionManager.Cookie.Name = "session_token"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	sessionManager.Cookie.Secure = cfg.Env == "production"

	switch cfg.DBType {
	case "postgres":
		sessionManager.Store = postgresstore.New(sqlDB)
	case "sqlite":
		sessionManager.Store = sqlite3store.New(sqlDB)
	default:
		// Fallback to the memory store scs.New() already configured
		// (not recommended for production)
	}

	return sessionManager, nil
}
