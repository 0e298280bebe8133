package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/sitedeck/internal/health"
	"github.com/sandeepkv93/sitedeck/internal/http/handler"
	"github.com/sandeepkv93/sitedeck/internal/http/middleware"
	"github.com/sandeepkv93/sitedeck/internal/http/response"
	"github.com/sandeepkv93/sitedeck/internal/security"
	"github.com/sandeepkv93/sitedeck/internal/service"
)

const (
	defaultBodyLimit = 1 << 20
	// Favicon uploads carry a multipart envelope on top of the image.
	faviconBodyLimit = 2 << 20
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	WebsiteHandler  *handler.WebsiteHandler
	CatalogHandler  *handler.CatalogHandler
	FavoriteHandler *handler.FavoriteHandler
	SettingHandler  *handler.SettingHandler
	AdminHandler    *handler.AdminHandler

	Sessions    service.SessionResolver
	Cookies     *security.CookieManager
	CORSOrigins []string

	APIRateLimitRPM      int
	AuthRateLimitRPM     int
	CheckURLRateLimitRPM int
	// Limiters override the in-process defaults, e.g. with a redis-backed limiter.
	APIRateLimiter      RateLimiterFunc
	AuthRateLimiter     RateLimiterFunc
	CheckURLRateLimiter RateLimiterFunc

	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

type RateLimiterFunc func(http.Handler) http.Handler

func limiterOrLocal(custom RateLimiterFunc, rpm int, scope string, keyFn middleware.KeyFunc) func(http.Handler) http.Handler {
	if custom != nil {
		return custom
	}
	if rpm <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.NewRateLimiter(rpm, time.Minute, scope).
		WithKeyFunc(keyFn).
		Middleware()
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))

	apiLimiter := limiterOrLocal(dep.APIRateLimiter, dep.APIRateLimitRPM, "api", middleware.KeyByUserOrIP)
	authLimiter := limiterOrLocal(dep.AuthRateLimiter, dep.AuthRateLimitRPM, "auth", middleware.KeyByIP)
	checkURLLimiter := limiterOrLocal(dep.CheckURLRateLimiter, dep.CheckURLRateLimitRPM, "check_url", middleware.KeyByIP)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready, results := dep.Readiness.Ready(r.Context())
		if results == nil {
			results = []health.CheckResult{}
		}
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeUnavailable, "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionAuth(dep.Sessions, dep.Cookies))
		r.Use(apiLimiter)

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.BodyLimit(defaultBodyLimit))
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.With(middleware.RequireAuth).Get("/me", dep.AuthHandler.Me)
			r.With(authLimiter).Post("/password/forgot", dep.AuthHandler.ForgotPassword)
			r.With(authLimiter).Post("/password/reset", dep.AuthHandler.ResetPassword)
			r.With(middleware.RequireAuth, authLimiter).Post("/password/change", dep.AuthHandler.ChangePassword)
		})

		r.Route("/websites", func(r chi.Router) {
			r.Get("/", dep.WebsiteHandler.List)
			r.With(checkURLLimiter).Get("/check-url", dep.WebsiteHandler.CheckURL)
			r.Get("/{id}", dep.WebsiteHandler.Get)
			r.With(middleware.RequireAuth, middleware.BodyLimit(defaultBodyLimit)).Post("/", dep.WebsiteHandler.Submit)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff)
				r.With(middleware.BodyLimit(defaultBodyLimit)).Patch("/{id}", dep.WebsiteHandler.Update)
				r.Post("/{id}/approve", dep.WebsiteHandler.Approve)
				r.Post("/{id}/reject", dep.WebsiteHandler.Reject)
				r.Delete("/{id}", dep.WebsiteHandler.Delete)
				r.With(middleware.BodyLimit(defaultBodyLimit)).Post("/bulk/delete", dep.WebsiteHandler.BulkDelete)
				r.With(middleware.BodyLimit(defaultBodyLimit)).Post("/bulk/status", dep.WebsiteHandler.BulkSetStatus)
				r.With(middleware.BodyLimit(faviconBodyLimit)).Post("/{id}/favicon", dep.WebsiteHandler.UploadFavicon)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", dep.CatalogHandler.ListCategories)
			r.Get("/{id}", dep.CatalogHandler.GetCategory)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff, middleware.BodyLimit(defaultBodyLimit))
				r.Post("/", dep.CatalogHandler.CreateCategory)
				r.Patch("/{id}", dep.CatalogHandler.UpdateCategory)
				r.Delete("/{id}", dep.CatalogHandler.DeleteCategory)
				r.Post("/bulk/delete", dep.CatalogHandler.BulkDeleteCategories)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", dep.CatalogHandler.ListTags)
			r.With(middleware.RequireAuth, middleware.BodyLimit(defaultBodyLimit)).Post("/", dep.CatalogHandler.CreateTag)
			r.With(middleware.RequireStaff).Delete("/{id}", dep.CatalogHandler.DeleteTag)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", dep.FavoriteHandler.List)
			r.Get("/{website_id}", dep.FavoriteHandler.Check)
			r.Put("/{website_id}", dep.FavoriteHandler.Add)
			r.Delete("/{website_id}", dep.FavoriteHandler.Remove)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", dep.SettingHandler.List)
			r.Get("/{key}", dep.SettingHandler.Get)
			r.With(middleware.RequireStaff, middleware.BodyLimit(defaultBodyLimit)).Put("/{key}", dep.SettingHandler.Update)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff, middleware.BodyLimit(defaultBodyLimit))
			r.Get("/users", dep.AdminHandler.ListUsers)
			r.Patch("/users/{id}/status", dep.AdminHandler.SetStatus)
			r.Patch("/users/{id}/role", dep.AdminHandler.SetRole)
			r.Patch("/users/{id}/trusted", dep.AdminHandler.SetTrusted)
			r.Post("/users/bulk/disable", dep.AdminHandler.BulkDisable)
			r.Get("/stats", dep.AdminHandler.Stats)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
