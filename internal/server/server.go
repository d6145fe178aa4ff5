package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/handlers"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/middleware"
)

// HealthFunc reports dependency status; "status" must be "up" for a 200.
type HealthFunc func(ctx context.Context) map[string]string

type Server struct {
	handler     *handlers.Handler
	auth        middleware.TokenVerifier
	health      HealthFunc
	metrics     http.Handler
	corsOrigins []string
	authLimit   *middleware.RateLimiter
	log         *slog.Logger
}

type Options struct {
	Handler     *handlers.Handler
	Auth        middleware.TokenVerifier
	Health      HealthFunc
	Metrics     http.Handler
	CORSOrigins []string
	// AuthLimit throttles register, login, refresh and logout; nil disables.
	AuthLimit *middleware.RateLimiter
	Log       *slog.Logger
}

func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		handler:     opts.Handler,
		auth:        opts.Auth,
		health:      opts.Health,
		metrics:     opts.Metrics,
		corsOrigins: origins,
		authLimit:   opts.AuthLimit,
		log:         log,
	}
}

// HTTPServer wraps the routes in an http.Server listening on port.
func (s *Server) HTTPServer(port string) *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		limited := api.Group("", middleware.RateLimit(s.authLimit))
		{
			limited.POST("/register", s.handler.Auth.Register)
			limited.POST("/login", s.handler.Auth.Login)
			limited.POST("/refresh", s.handler.Auth.Refresh)
			limited.POST("/logout", s.handler.Auth.Logout)
		}

		// Public reads
		api.GET("/posts", s.handler.Post.GetPosts)
		api.GET("/posts/:id", s.handler.Post.GetPost)
		api.GET("/posts/:id/comments", s.handler.Comment.GetComments)
		api.GET("/users/:id", s.handler.User.GetUserProfile)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.auth))
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.PUT("/posts/:id", s.handler.Post.UpdatePost)
			protected.DELETE("/posts/:id", s.handler.Post.DeletePost)
			protected.GET("/posts/:id/vote", s.handler.Post.GetPostVote)
			protected.POST("/posts/:id/vote", s.handler.Post.VotePost)

			protected.POST("/posts/:id/comments", s.handler.Comment.CreateComment)
			protected.PUT("/comments/:commentId", s.handler.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
			protected.GET("/comments/:commentId/vote", s.handler.Comment.GetCommentVote)
			protected.POST("/comments/:commentId/vote", s.handler.Comment.VoteComment)
			protected.POST("/comments/:commentId/upvote", s.handler.Comment.UpvoteComment)
			protected.POST("/comments/:commentId/downvote", s.handler.Comment.DownvoteComment)

			protected.PUT("/users/:id", s.handler.User.UpdateUserProfile)
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	stats := s.health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.log.LogAttrs(c.Request.Context(), slog.LevelInfo, "http request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
