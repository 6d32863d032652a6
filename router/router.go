package router

import (
	_ "go-auth-api/docs"
	"go-auth-api/handler"
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Options configures the routes that do not depend on handlers.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
}

// NewRouter mounts the auth endpoints under the API prefix. A nil authHandler
// serves only health, metrics and docs.
func NewRouter(authHandler *handler.AuthHandler, verifier handler.TokenVerifier, opts Options) http.Handler {
	mux := http.NewServeMux()
	prefix := strings.TrimRight(opts.APIPrefix, "/")

	mux.HandleFunc("GET /health", handler.HealthCheck)
	if prefix != "" {
		mux.HandleFunc("GET "+prefix+"/health", handler.HealthCheck)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if authHandler != nil {
		requireAuth := handler.AuthMiddleware(verifier)
		route := func(pattern string, h http.Handler) {
			method, path, _ := strings.Cut(pattern, " ")
			mux.Handle(method+" "+prefix+path, h)
		}

		route("POST /auth/register", handler.ErrorHandlingMiddleware(authHandler.Register))
		route("POST /auth/login", handler.ErrorHandlingMiddleware(authHandler.Login))
		route("POST /auth/refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))
		route("POST /auth/verify", handler.ErrorHandlingMiddleware(authHandler.VerifyEmail))
		route("POST /auth/forgot-password", handler.ErrorHandlingMiddleware(authHandler.ForgotPassword))
		route("POST /auth/reset-password/{token}", handler.ErrorHandlingMiddleware(authHandler.ResetPassword))

		route("GET /auth/me", requireAuth(handler.ErrorHandlingMiddleware(authHandler.Me)))
		route("POST /auth/logout", requireAuth(handler.ErrorHandlingMiddleware(authHandler.Logout)))
	}

	c := cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	var h http.Handler = mux
	h = handler.MetricsMiddleware(h)
	h = handler.RequestLogger(h)
	h = cors.Handler(c)(h)
	return h
}
