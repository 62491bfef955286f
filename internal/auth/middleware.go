package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"gorm.io/gorm"
)

type contextKey string

const UserContextKey contextKey = "user"

const sessionUserIDKey = "user_id"

// EstablishSession records the user in the server-side session, rotating the
// session token first to prevent fixation.
func EstablishSession(sm *scs.SessionManager, r *http.Request, userID uint) error {
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}
	sm.Put(r.Context(), sessionUserIDKey, int(userID))
	return nil
}

// userFromSession resolves the current session to a user, or nil if no
// authenticated session exists.
func userFromSession(db *gorm.DB, sm *scs.SessionManager, r *http.Request) *models.User {
	userID := sm.GetInt(r.Context(), sessionUserIDKey)
	if userID <= 0 {
		return nil
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil
	}
	return &user
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" if the header is absent or malformed.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// userFromBearer resolves the Authorization header to a user, or nil.
func userFromBearer(db *gorm.DB, r *http.Request) *models.User {
	token := BearerToken(r)
	if token == "" {
		return nil
	}
	user, err := ValidateToken(db, token)
	if err != nil {
		return nil
	}
	return user
}

// RequireSession admits only requests carrying a valid server-side session.
func RequireSession(db *gorm.DB, sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromSession(db, sm, r)
			if user == nil {
				httpjson.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireBearer admits only requests carrying a valid bearer token.
func RequireBearer(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromBearer(db, r)
			if user == nil {
				httpjson.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireAuth admits requests authenticated by either strategy. When an
// Authorization header is present the bearer strategy decides; otherwise
// the session strategy does.
func RequireAuth(db *gorm.DB, sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var user *models.User
			if r.Header.Get("Authorization") != "" {
				user = userFromBearer(db, r)
			} else {
				user = userFromSession(db, sm, r)
			}
			if user == nil {
				httpjson.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUser returns the authenticated user from the request context, or nil.
func GetUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}
