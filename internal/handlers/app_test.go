package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/lijuniwawanah-jpg/docvault/internal/audit"
	"github.com/lijuniwawanah-jpg/docvault/internal/auth"
	"github.com/lijuniwawanah-jpg/docvault/internal/config"
	"github.com/lijuniwawanah-jpg/docvault/internal/database/models"
	"github.com/lijuniwawanah-jpg/docvault/internal/documents"
	"github.com/lijuniwawanah-jpg/docvault/internal/share"
	"github.com/lijuniwawanah-jpg/docvault/internal/storage"
)

// testApp wires the full handler stack against an in-memory database and
// blob store, with sessions in the scs memory store.
type testApp struct {
	db             *gorm.DB
	cfg            *config.Config
	backend        *storage.MemoryBackend
	sessionManager *scs.SessionManager
	svc            *documents.Service
	issuer         *share.Issuer
	trashHandler   *TrashHandler
	router         *chi.Mux
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Document{},
		&models.TrashedDocument{},
		&models.AuthToken{},
		&models.OTPChallenge{},
		&models.ShareLink{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	cfg := &config.Config{
		Env:                   "test",
		BaseURL:               "http://localhost:8080",
		MaxUploadSize:         10 * 1024 * 1024,
		DefaultUserQuota:      100 * 1024 * 1024,
		BcryptCost:            4,
		EnableRegistration:    true,
		SessionDuration:       "1h",
		OTPTTL:                5 * time.Minute,
		BearerTokenTTL:        720 * time.Hour,
		ShareDefaultTTLMin:    60,
		TrashRetentionDays:    30,
		TrashSweepIntervalMin: 60,
	}

	// DBType is unset so scs keeps its in-process memory store
	sessionManager, err := auth.NewSessionManager(db, cfg)
	if err != nil {
		t.Fatalf("Failed to create session manager: %v", err)
	}

	backend := storage.NewMemoryBackend()
	recorder := audit.NewRecorder(db)
	svc := documents.NewService(db, cfg, backend, recorder)
	issuer := share.NewIssuer(db, cfg, recorder)

	authHandler := NewAuthHandler(db, cfg, sessionManager, recorder)
	documentHandler := NewDocumentHandler(svc, cfg)
	trashHandler := NewTrashHandler(svc, cfg)
	shareHandler := NewShareHandler(issuer, svc)
	adminHandler := NewAdminHandler(db, issuer, recorder)

	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/request_otp", authHandler.RequestOTP)
		r.Post("/auth/verify_otp", authHandler.VerifyOTP)
	})

	router.Get("/share/download", shareHandler.SharedDownload)

	router.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
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

	router.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(auth.RequireAdmin(db))
		r.Get("/admin/stats", adminHandler.Stats)
		r.Get("/admin/recent_logs", adminHandler.RecentLogs)
		r.Get("/admin/search", adminHandler.Search)
	})

	app := &testApp{
		db:             db,
		cfg:            cfg,
		backend:        backend,
		sessionManager: sessionManager,
		svc:            svc,
		issuer:         issuer,
		trashHandler:   trashHandler,
		router:         router,
	}

	t.Cleanup(func() {
		app.trashHandler.Shutdown()
	})

	return app
}

// createUser inserts a user with a known password and issues a bearer token
// for it, skipping the HTTP login flow.
func (app *testApp) createUser(t *testing.T, publicID, email string) (*models.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("test-password", app.cfg.BcryptCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		PublicID:     publicID,
		FullName:     "Test User",
		Email:        &email,
		PasswordHash: &hash,
		Role:         "user",
		StorageQuota: app.cfg.DefaultUserQuota,
	}
	if err := app.db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	token, err := auth.CreateToken(app.db, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	return user, token
}

func (app *testApp) createAdmin(t *testing.T, publicID, email string) (*models.User, string) {
	t.Helper()

	user, token := app.createUser(t, publicID, email)
	if err := app.db.Model(user).Update("role", "admin").Error; err != nil {
		t.Fatalf("failed to promote user: %v", err)
	}
	return user, token
}

// doJSON performs a request with a JSON body and optional bearer token.
func (app *testApp) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	r := httptest.NewRequest(method, path, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, r)
	return w
}

// uploadFile performs a multipart upload of content as a single file field.
func (app *testApp) uploadFile(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	writer.Close()

	r := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, r)
	return w
}

// decodeBody unmarshals a JSON response body into a map.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}
