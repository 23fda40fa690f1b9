package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/knoverse/backend/internal/database"
	"github.com/knoverse/backend/internal/inference"
	"github.com/knoverse/backend/internal/middleware"
	"github.com/knoverse/backend/internal/models"
	"github.com/knoverse/backend/internal/services"
	"github.com/knoverse/backend/pkg/logger"
	"github.com/knoverse/backend/pkg/utils"
	"gorm.io/gorm"
)

type stubRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// inferenceStub is an in-process stand-in for the Python inference service.
// It records every request and answers with a configurable status and body.
type inferenceStub struct {
	mu       sync.Mutex
	requests []stubRequest
	status   int
	body     string
	server   *httptest.Server
}

func newInferenceStub(t *testing.T) *inferenceStub {
	t.Helper()

	stub := &inferenceStub{status: http.StatusOK, body: `{"ok":true}`}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &payload)

		stub.mu.Lock()
		stub.requests = append(stub.requests, stubRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   payload,
		})
		status := stub.status
		body := stub.body
		stub.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(stub.server.Close)

	return stub
}

func (s *inferenceStub) respondWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *inferenceStub) recorded() []stubRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stubRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	inference *inferenceStub
	analytics *services.AnalyticsService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	stub := newInferenceStub(t)
	inferenceClient := inference.NewClient(stub.server.URL)
	analyticsService := services.NewAnalyticsService(db, nil)

	authHandler := NewAuthHandler(db)
	usersHandler := NewUsersHandler(db)
	teamsHandler := NewTeamsHandler(db, nil, inferenceClient)
	filesHandler := NewFilesHandler(db, nil, inferenceClient)
	chatHandler := NewChatHandler(db, inferenceClient, analyticsService)
	analyticsHandler := NewAnalyticsHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:3000"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", GetVersion)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.UpdatePassword)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Post("/:id/reset-password", usersHandler.ResetPassword)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Delete)

	api.Get("/teams", authMiddleware.RequireAuth, teamsHandler.List)
	api.Get("/me/teams", authMiddleware.RequireAuth, teamsHandler.MyTeams)

	teamRoutes := api.Group("/teams", authMiddleware.RequireAuth, middleware.AdminOnly)
	teamRoutes.Get("/count", teamsHandler.Count)
	teamRoutes.Post("/", teamsHandler.Create)
	teamRoutes.Delete("/:id", teamsHandler.Delete)
	teamRoutes.Get("/:id/members", teamsHandler.ListMembers)
	teamRoutes.Post("/:id/members", teamsHandler.AddMember)
	teamRoutes.Delete("/:id/members/:userId", teamsHandler.RemoveMember)

	chatRoutes := api.Group("/chat", authMiddleware.RequireAuth)
	chatRoutes.Post("/messages", chatHandler.SendMessage)
	chatRoutes.Get("/sessions", chatHandler.ListSessions)
	chatRoutes.Get("/history", chatHandler.History)

	fileRoutes := api.Group("/files", authMiddleware.RequireAuth, middleware.AdminOnly)
	fileRoutes.Post("/upload", filesHandler.Upload)
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	analyticsRoutes := api.Group("/analytics", authMiddleware.RequireAuth, middleware.AdminOnly)
	analyticsRoutes.Get("/usage", analyticsHandler.Usage)
	analyticsRoutes.Get("/activity", analyticsHandler.Activity)

	return &testEnv{app: app, db: db, inference: stub, analytics: analyticsService}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Test User",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestTeam(t *testing.T, db *gorm.DB, name string) *models.Team {
	t.Helper()

	team := &models.Team{Name: name}
	if err := db.Create(team).Error; err != nil {
		t.Fatalf("failed creating test team: %v", err)
	}
	return team
}

func addTeamMember(t *testing.T, db *gorm.DB, team *models.Team, user *models.User) {
	t.Helper()

	membership := &models.TeamMember{UserID: user.ID, TeamID: team.ID}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating test membership: %v", err)
	}
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
