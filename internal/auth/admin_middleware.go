package auth

import (
	"net/http"

	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"gorm.io/gorm"
)

// RequireAdmin admits only authenticated admins: 401 when unauthenticated,
// 403 when authenticated but not an admin. It expects RequireAuth (or one
// of the single-strategy middlewares) to run first. The role is re-read
// from storage on every request so role changes take effect immediately,
// not at next login.
func RequireAdmin(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				httpjson.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			var role string
			if err := db.Model(user).Select("role").Where("id = ?", user.ID).Scan(&role).Error; err != nil {
				httpjson.Error(w, http.StatusInternalServerError, "failed to resolve role")
				return
			}
			user.Role = role

			if !user.IsAdmin() {
				httpjson.Error(w, http.StatusForbidden, "admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
