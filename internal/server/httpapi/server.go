// Package httpapi exposes the authentication service over HTTP. Session
// tokens travel only in the `token` cookie; request and response bodies are
// JSON with a uniform {success, message} envelope.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/murichu/go-auth-service/internal/logging"
	"github.com/murichu/go-auth-service/internal/server/config"
	"github.com/murichu/go-auth-service/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

type HTTPServer struct {
	address        string
	service        *services.AuthService
	logger         logging.Logger
	frontendOrigin string
	cookieTTL      time.Duration
	production     bool
}

func NewHTTPServer(l logging.Logger, s *services.AuthService, cfg *config.Config) (*HTTPServer, error) {
	return &HTTPServer{
		address:        cfg.EndpointAddrHTTP,
		service:        s,
		logger:         l.With("module", "http_server"),
		frontendOrigin: cfg.FrontendOrigin,
		cookieTTL:      cfg.SessionTokenValidityDuration,
		production:     cfg.IsProduction(),
	}, nil
}

func (s *HTTPServer) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{s.frontendOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
	}))

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
		auth.POST("/send-reset-otp", s.sendResetOtp)
		auth.POST("/reset-password", s.resetPassword)

		authed := auth.Group("")
		authed.Use(s.authRequired())
		{
			authed.POST("/logout", s.logout)
			authed.POST("/send-verify-otp", s.sendVerifyOtp)
			authed.POST("/verify-account", s.verifyAccount)
			authed.GET("/is-auth", s.isAuth)
		}
	}

	user := api.Group("/user")
	user.Use(s.authRequired())
	{
		user.GET("/data", s.getUserData)
	}

	return router
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.InitRoutes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
