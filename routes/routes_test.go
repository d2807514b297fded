package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Lupao-eth/triptask-backend/chat"
	"github.com/Lupao-eth/triptask-backend/config"
	"github.com/Lupao-eth/triptask-backend/hub"
	"github.com/Lupao-eth/triptask-backend/lifecycle"
	"github.com/Lupao-eth/triptask-backend/storage"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := storage.New(t.TempDir(), []byte("test-secret"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	bus := hub.New(nil)
	engine := lifecycle.New(db, bus, nil)
	chatLog := chat.NewLog(db, bus, store)

	r := gin.New()
	SetupRoutes(r, Deps{
		DB:     db,
		Engine: engine,
		Hub:    bus,
		Chat:   chatLog,
		Store:  store,
	})
	return &testAPI{t: t, router: r}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// register creates a user and returns its access and refresh tokens.
func (a *testAPI) register(name, role string) (access, refresh string) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/auth/register", "", gin.H{
		"name":     name,
		"email":    name + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("register %s = %d: %s", name, w.Code, w.Body)
	}
	var resp struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		a.t.Fatalf("decode register response: %v", err)
	}
	return resp.Token, resp.RefreshToken
}

func (a *testAPI) createTask(customerToken string) uint {
	a.t.Helper()
	w := a.do(http.MethodPost, "/tasks", customerToken, gin.H{
		"name":     "Parcel run",
		"task":     "Deliver a parcel",
		"pickup":   "A",
		"dropoff":  "B",
		"datetime": "2026-09-01T10:00",
	})
	if w.Code != http.StatusCreated {
		a.t.Fatalf("create task = %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Task struct {
			ID uint `json:"id"`
		} `json:"task"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		a.t.Fatalf("decode task: %v", err)
	}
	return resp.Task.ID
}

func TestClaimAuthScenarios(t *testing.T) {
	api := newTestAPI(t)
	customer, _ := api.register("cara", "customer")
	riderA, _ := api.register("rei", "rider")
	riderB, _ := api.register("ben", "rider")
	id := api.createTask(customer)
	path := fmt.Sprintf("/tasks/%d", id)

	// No credential at all.
	if w := api.do(http.MethodPut, path, "", gin.H{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated claim = %d, want 401", w.Code)
	}

	// First rider wins.
	if w := api.do(http.MethodPut, path, riderA, gin.H{}); w.Code != http.StatusOK {
		t.Fatalf("rider A claim = %d: %s", w.Code, w.Body)
	}
	// Second rider lost the race: Conflict, not NotFound.
	if w := api.do(http.MethodPut, path, riderB, gin.H{}); w.Code != http.StatusConflict {
		t.Fatalf("rider B claim = %d, want 409", w.Code)
	}
	// Owner can no longer edit or cancel.
	if w := api.do(http.MethodPut, path, customer, gin.H{"name": "late edit"}); w.Code != http.StatusConflict {
		t.Fatalf("post-claim edit = %d, want 409", w.Code)
	}
	if w := api.do(http.MethodDelete, path, customer, nil); w.Code != http.StatusConflict {
		t.Fatalf("post-claim cancel = %d, want 409", w.Code)
	}
	// Non-assignee cannot advance; out-of-order advance is its own error.
	if w := api.do(http.MethodPut, path, riderB, gin.H{"status": "on_the_way"}); w.Code != http.StatusForbidden {
		t.Fatalf("non-assignee advance = %d, want 403", w.Code)
	}
	if w := api.do(http.MethodPut, path, riderA, gin.H{"status": "completed"}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("skip advance = %d, want 422", w.Code)
	}
	if w := api.do(http.MethodPut, path, riderA, gin.H{"status": "on_the_way"}); w.Code != http.StatusOK {
		t.Fatalf("advance = %d: %s", w.Code, w.Body)
	}
}

func TestRefreshTokenIsNotRequestAuthorization(t *testing.T) {
	api := newTestAPI(t)
	access, refresh := api.register("cara", "customer")

	if w := api.do(http.MethodGet, "/auth/me", access, nil); w.Code != http.StatusOK {
		t.Fatalf("me with access token = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/auth/me", refresh, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me with refresh token = %d, want 401", w.Code)
	}

	// But it does mint a new access token.
	w := api.do(http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", w.Code, w.Body)
	}
}

func TestServiceOfflineGatesMutation(t *testing.T) {
	api := newTestAPI(t)
	customer, _ := api.register("cara", "customer")
	admin, _ := api.register("ada", "admin")

	// Customers cannot flip the breaker.
	if w := api.do(http.MethodPut, "/service-status", customer, gin.H{"isOnline": false}); w.Code != http.StatusForbidden {
		t.Fatalf("customer status write = %d, want 403", w.Code)
	}
	if w := api.do(http.MethodPut, "/service-status", admin, gin.H{"isOnline": false}); w.Code != http.StatusOK {
		t.Fatalf("admin status write = %d: %s", w.Code, w.Body)
	}

	// Mutation is refused while offline; reads still work.
	w := api.do(http.MethodPost, "/tasks", customer, gin.H{
		"name": "x", "task": "y", "pickup": "a", "dropoff": "b", "datetime": "t",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("create while offline = %d, want 403", w.Code)
	}
	if w := api.do(http.MethodGet, "/tasks", customer, nil); w.Code != http.StatusOK {
		t.Fatalf("list while offline = %d, want 200", w.Code)
	}

	if w := api.do(http.MethodPut, "/service-status", admin, gin.H{"isOnline": true}); w.Code != http.StatusOK {
		t.Fatalf("re-enable = %d", w.Code)
	}
	api.createTask(customer)
}

func TestRoleScopedListings(t *testing.T) {
	api := newTestAPI(t)
	customer, _ := api.register("cara", "customer")
	rider, _ := api.register("rei", "rider")
	api.createTask(customer)

	if w := api.do(http.MethodGet, "/tasks/available", rider, nil); w.Code != http.StatusOK {
		t.Fatalf("rider available = %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/tasks/available", customer, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer available = %d, want 403", w.Code)
	}
	if w := api.do(http.MethodGet, "/users", customer, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer users list = %d, want 403", w.Code)
	}
}
