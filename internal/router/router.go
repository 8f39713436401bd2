package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/anonto42/feedpulse/backend/internal/events"
	"github.com/anonto42/feedpulse/backend/internal/handlers"
	"github.com/anonto42/feedpulse/backend/internal/middleware"
	"github.com/anonto42/feedpulse/backend/internal/models"
	"github.com/anonto42/feedpulse/backend/internal/realtime"
	"github.com/anonto42/feedpulse/backend/internal/repositories"
)

// Repositories groups the stores the API is built on.
type Repositories struct {
	Users         repositories.UserRepository
	Posts         repositories.PostRepository
	Likes         repositories.LikeRepository
	Comments      repositories.CommentRepository
	Notifications repositories.NotificationRepository
}

// NewRepositories wires the Postgres and MongoDB implementations.
func NewRepositories(pgdb *gorm.DB, mgdb *mongo.Database) *Repositories {
	return &Repositories{
		Users:         repositories.NewPostgresUserRepository(pgdb),
		Posts:         repositories.NewMongoPostRepository(mgdb),
		Likes:         repositories.NewPostgresLikeRepository(pgdb),
		Comments:      repositories.NewPostgresCommentRepository(pgdb),
		Notifications: repositories.NewPostgresNotificationRepository(pgdb),
	}
}

// Migrate creates or updates the PostgreSQL tables.
func Migrate(pgdb *gorm.DB) error {
	if err := pgdb.AutoMigrate(
		&models.User{},
		&models.Like{},
		&models.Comment{},
		&models.Notification{},
	); err != nil {
		return err
	}
	log.Info("PostgreSQL auto-migrations completed for all models.")
	return nil
}

// Dependencies is everything SetupRoutes needs.
type Dependencies struct {
	Repos    *Repositories
	Bus      events.Publisher
	Registry *realtime.Registry
	// Verifier guards /api when set; nil leaves the API open.
	Verifier       middleware.TokenVerifier
	AllowedOrigins []string
	Logger         log.FieldLogger
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, allowedOrigins []string, logger log.FieldLogger) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": float64(v.Latency) / float64(time.Millisecond),
				"remote_ip":  v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(eMiddleware.CORSWithConfig(eMiddleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	// Health check and the socket endpoint are always accessible
	e.GET("/api/health", handlers.HealthCheck)
	e.GET("/ws", realtime.NewHandler(deps.Registry, deps.AllowedOrigins, logger).Serve)

	api := e.Group("/api")
	if deps.Verifier != nil {
		api.Use(middleware.FirebaseAuthMiddleware(deps.Verifier))
		logger.Info("Firebase authentication middleware applied to /api group.")
	}

	repos := deps.Repos
	handlers.NewUserHandler(repos.Users, deps.Bus).RegisterUserRoutes(api)
	handlers.NewPostHandler(repos.Posts, repos.Users, repos.Comments, repos.Likes, deps.Bus).RegisterPostRoutes(api)
	handlers.NewLikeHandler(repos.Likes, repos.Posts, repos.Users, deps.Bus).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(repos.Comments, repos.Posts, repos.Users, deps.Bus).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(repos.Notifications).RegisterNotificationRoutes(api)

	logger.WithField("routes", len(e.Routes())).Info("All routes configured.")
}
