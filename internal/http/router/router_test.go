package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/sitedeck/internal/config"
	"github.com/sandeepkv93/sitedeck/internal/database"
	"github.com/sandeepkv93/sitedeck/internal/health"
	"github.com/sandeepkv93/sitedeck/internal/http/handler"
	"github.com/sandeepkv93/sitedeck/internal/repository"
	"github.com/sandeepkv93/sitedeck/internal/repository/sqlstore"
	"github.com/sandeepkv93/sitedeck/internal/security"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

const (
	rootEmail    = "root@sitedeck.test"
	testPassword = "Router-Passw0rd!"
)

// seededSQLite migrates and seeds a sqlite file and returns its path.
func seededSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "router.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	_, err = database.Seed(db, database.SeedOptions{AdminEmail: rootEmail, AdminPassword: testPassword, AdminName: "Root"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func openGormStore(t *testing.T, path string) repository.Store {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return repository.NewGormStore(db)
}

func openSQLStore(t *testing.T, path string) repository.Store {
	store, err := sqlstore.Open(context.Background(), config.DialectSQLite, path, sqlstore.PoolOptions{})
	require.NoError(t, err)
	return store
}

func newTestServer(t *testing.T, store repository.Store) *httptest.Server {
	t.Helper()
	t.Cleanup(func() { _ = store.Close() })

	cache := service.NewListCache(service.NewMemoryListCacheStore(), time.Minute, nil)
	bulk := service.BulkRunner{MaxItems: 50, Concurrency: 2}
	jwtMgr := security.NewJWTManager("sitedeck-test", "sitedeck-test-clients", "router-test-secret-0123456789abcdef")
	sessions := service.NewSessionService(store.Sessions(), store.Users(), jwtMgr, 7*24*time.Hour, nil)
	guard := service.NewMemoryAttemptGuard(service.AttemptPolicy{FreeAttempts: 5, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, ResetWindow: time.Hour})
	auth := service.NewAuthService(store.Users(), store.PasswordResets(), sessions, guard, service.NewLogPasswordResetNotifier(nil), service.AuthOptions{
		PasswordResetTTL: time.Hour,
		PasswordResetURL: "https://sitedeck.test/reset",
	}, nil)
	settings := service.NewSettingService(store.Settings(), cache, nil)
	cookies := security.NewCookieManager("session_token", "", false, "lax")

	srv := httptest.NewServer(NewRouter(Dependencies{
		AuthHandler:     handler.NewAuthHandler(auth, cookies),
		WebsiteHandler:  handler.NewWebsiteHandler(service.NewWebsiteService(store.Websites(), store.Categories(), settings, nil, cache, bulk, nil), 64<<10),
		CatalogHandler:  handler.NewCatalogHandler(service.NewCategoryService(store.Categories(), cache, bulk), service.NewTagService(store.Tags(), cache)),
		FavoriteHandler: handler.NewFavoriteHandler(service.NewFavoriteService(store.Favorites(), store.Websites())),
		SettingHandler:  handler.NewSettingHandler(settings),
		AdminHandler:    handler.NewAdminHandler(service.NewUserService(store.Users(), store.Websites(), sessions, bulk)),

		Sessions:             sessions,
		Cookies:              cookies,
		APIRateLimitRPM:      10000,
		AuthRateLimitRPM:     10000,
		CheckURLRateLimitRPM: 10000,
		Readiness:            health.NewProbeRunner(time.Second, 0, health.NewStoreChecker(store)),
	}))
	t.Cleanup(srv.Close)
	return srv
}

type apiResponse struct {
	Status  int
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (r apiResponse) code() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}

func (r apiResponse) into(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, dst), "data=%s", r.Data)
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, srv *httptest.Server) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: srv.URL + "/api/v1", http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, body any) apiResponse {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out := apiResponse{Status: resp.StatusCode}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (c *apiClient) login(email, password string) apiResponse {
	c.t.Helper()
	return c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
}

func (c *apiClient) register(email, name string) uint {
	c.t.Helper()
	res := c.do(http.MethodPost, "/auth/register", map[string]string{"email": email, "name": name, "password": testPassword})
	require.Equal(c.t, http.StatusCreated, res.Status, "register %s: %+v", email, res)
	var body struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	res.into(c.t, &body)
	return body.User.ID
}

type websiteView struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type websitePage struct {
	Items []websiteView `json:"items"`
	Total int64         `json:"total"`
}

func listIDs(t *testing.T, c *apiClient, query string) map[uint]bool {
	t.Helper()
	res := c.do(http.MethodGet, "/websites"+query, nil)
	require.Equal(t, http.StatusOK, res.Status)
	var page websitePage
	res.into(t, &page)
	out := map[uint]bool{}
	for _, w := range page.Items {
		out[w.ID] = true
	}
	return out
}

func TestDirectoryFlowAcrossStoreAdapters(t *testing.T) {
	adapters := map[string]func(*testing.T, string) repository.Store{
		"gorm": openGormStore,
		"sql":  openSQLStore,
	}
	for name, open := range adapters {
		t.Run(name, func(t *testing.T) {
			runDirectoryFlow(t, newTestServer(t, open(t, seededSQLite(t))))
		})
	}
}

func runDirectoryFlow(t *testing.T, srv *httptest.Server) {
	anon := newClient(t, srv)
	root := newClient(t, srv)
	alice := newClient(t, srv)

	require.Equal(t, http.StatusOK, root.login(rootEmail, testPassword).Status)
	aliceID := alice.register("alice@example.com", "Alice")

	var categories []struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	anon.do(http.MethodGet, "/categories", nil).into(t, &categories)
	require.NotEmpty(t, categories)
	categoryID := categories[0].ID

	submission := func(title, url string) map[string]any {
		return map[string]any{"title": title, "url": url, "description": title + " home", "category_id": categoryID}
	}

	t.Run("incomplete submission is rejected without a row", func(t *testing.T) {
		for _, field := range []string{"title", "url", "description", "category_id"} {
			body := submission("Go", "https://go.dev")
			delete(body, field)
			res := alice.do(http.MethodPost, "/websites", body)
			require.Equal(t, http.StatusBadRequest, res.Status, field)
			require.Equal(t, "VALIDATION_FAILED", res.code(), field)
		}
		require.Empty(t, listIDs(t, alice, "?mine=true"))
	})

	var goID uint
	t.Run("untrusted submission waits for review then approval publishes it", func(t *testing.T) {
		res := alice.do(http.MethodPost, "/websites", submission("Go", "https://go.dev"))
		require.Equal(t, http.StatusCreated, res.Status)
		var site websiteView
		res.into(t, &site)
		require.Equal(t, "pending", site.Status)
		goID = site.ID

		require.False(t, listIDs(t, anon, "")[goID])
		require.Equal(t, http.StatusNotFound, anon.do(http.MethodGet, fmt.Sprintf("/websites/%d", goID), nil).Status)
		require.True(t, listIDs(t, alice, "?mine=true")[goID])

		require.Equal(t, http.StatusForbidden, alice.do(http.MethodPost, fmt.Sprintf("/websites/%d/approve", goID), nil).Status)
		require.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, fmt.Sprintf("/websites/%d/approve", goID), nil).Status)

		res = root.do(http.MethodPost, fmt.Sprintf("/websites/%d/approve", goID), nil)
		require.Equal(t, http.StatusOK, res.Status)
		require.True(t, listIDs(t, anon, "")[goID])
	})

	t.Run("duplicate url is reported and rejected", func(t *testing.T) {
		res := anon.do(http.MethodGet, "/websites/check-url?url=http://www.GO.dev/", nil)
		require.Equal(t, http.StatusOK, res.Status)
		var check struct {
			IsDuplicate bool `json:"is_duplicate"`
			Existing    struct {
				Title string `json:"title"`
			} `json:"existing"`
		}
		res.into(t, &check)
		require.True(t, check.IsDuplicate)
		require.Equal(t, "Go", check.Existing.Title)

		res = alice.do(http.MethodPost, "/websites", submission("Go again", "https://go.dev/"))
		require.Equal(t, http.StatusBadRequest, res.Status)
		require.Contains(t, res.Message, "Go")
	})

	t.Run("favorites are idempotent", func(t *testing.T) {
		path := fmt.Sprintf("/favorites/%d", goID)
		require.Equal(t, http.StatusCreated, alice.do(http.MethodPut, path, nil).Status)
		require.Equal(t, http.StatusOK, alice.do(http.MethodPut, path, nil).Status)
		var favs []websiteView
		alice.do(http.MethodGet, "/favorites", nil).into(t, &favs)
		require.Len(t, favs, 1)
		require.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/favorites", nil).Status)
	})

	t.Run("category in use cannot be deleted", func(t *testing.T) {
		res := root.do(http.MethodDelete, fmt.Sprintf("/categories/%d", categoryID), nil)
		require.Equal(t, http.StatusConflict, res.Status)
		require.Equal(t, "CATEGORY_IN_USE", res.code())
		require.Equal(t, http.StatusOK, anon.do(http.MethodGet, fmt.Sprintf("/categories/%d", categoryID), nil).Status)
	})

	t.Run("trusted submitter is auto approved when enabled", func(t *testing.T) {
		res := root.do(http.MethodPut, "/settings/auto_approve_trusted_users", map[string]any{"value": true})
		require.Equal(t, http.StatusOK, res.Status, "%+v", res)
		res = root.do(http.MethodPatch, fmt.Sprintf("/admin/users/%d/trusted", aliceID), map[string]any{"trusted": true})
		require.Equal(t, http.StatusOK, res.Status)

		res = alice.do(http.MethodPost, "/websites", submission("Rust", "https://www.rust-lang.org"))
		require.Equal(t, http.StatusCreated, res.Status)
		var site websiteView
		res.into(t, &site)
		require.Equal(t, "approved", site.Status)
	})

	bob := newClient(t, srv)
	bobID := bob.register("bob@example.com", "Bob")
	carolID := newClient(t, srv).register("carol@example.com", "Carol")
	for _, id := range []uint{bobID, carolID} {
		res := root.do(http.MethodPatch, fmt.Sprintf("/admin/users/%d/role", id), map[string]string{"role": "admin"})
		require.Equal(t, http.StatusOK, res.Status, "%+v", res)
	}
	// Role changes revoke sessions.
	require.Equal(t, http.StatusUnauthorized, bob.do(http.MethodGet, "/auth/me", nil).Status)
	require.Equal(t, http.StatusOK, bob.login("bob@example.com", testPassword).Status)

	t.Run("admin cannot change another admin's role", func(t *testing.T) {
		for _, role := range []string{"user", "admin", "super_admin"} {
			res := bob.do(http.MethodPatch, fmt.Sprintf("/admin/users/%d/role", carolID), map[string]string{"role": role})
			require.Equal(t, http.StatusForbidden, res.Status, role)
		}
	})

	t.Run("super admin status cannot be changed", func(t *testing.T) {
		var me struct {
			ID uint `json:"id"`
		}
		root.do(http.MethodGet, "/auth/me", nil).into(t, &me)
		for _, c := range []*apiClient{bob, root} {
			res := c.do(http.MethodPatch, fmt.Sprintf("/admin/users/%d/status", me.ID), map[string]string{"status": "inactive"})
			require.Equal(t, http.StatusForbidden, res.Status)
		}
	})

	t.Run("disabled account login is distinct from a bad password", func(t *testing.T) {
		res := bob.do(http.MethodPatch, fmt.Sprintf("/admin/users/%d/status", aliceID), map[string]string{"status": "inactive"})
		require.Equal(t, http.StatusOK, res.Status)
		require.Equal(t, http.StatusUnauthorized, alice.do(http.MethodGet, "/auth/me", nil).Status)

		res = alice.login("alice@example.com", testPassword)
		require.Equal(t, http.StatusForbidden, res.Status)
		require.Equal(t, "ACCOUNT_DISABLED", res.code())

		res = newClient(t, srv).login("carol@example.com", "Wrong-Passw0rd!")
		require.Equal(t, http.StatusUnauthorized, res.Status)
		require.Equal(t, "INVALID_PASSWORD", res.code())
	})

	t.Run("stats and readiness", func(t *testing.T) {
		res := root.do(http.MethodGet, "/admin/stats", nil)
		require.Equal(t, http.StatusOK, res.Status)
		resp, err := http.Get(srv.URL + "/health/ready")
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("logout clears the session", func(t *testing.T) {
		require.Equal(t, http.StatusOK, root.do(http.MethodPost, "/auth/logout", nil).Status)
		require.Equal(t, http.StatusUnauthorized, root.do(http.MethodGet, "/auth/me", nil).Status)
	})
}

func TestLivenessAndAnonymousFavorites(t *testing.T) {
	srv := newTestServer(t, openGormStore(t, seededSQLite(t)))
	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, err = http.Post(srv.URL+"/api/v1/favorites", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
