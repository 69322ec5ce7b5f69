package routes

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sengupta-aenesh/paktav3-sub002/internal/api/middleware"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/collab/broadcast"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/config"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/handlers"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/models"
	"github.com/sengupta-aenesh/paktav3-sub002/internal/tasks/rate"
)

// SetupCollaborationRoutes wires the collaboration services and their REST
// facade under /api/v1. Everything here requires authentication; per-resource
// authorization happens in the service layer where the resource identity is
// known.
func SetupCollaborationRoutes(e *echo.Echo, db *gorm.DB, cfg *config.Config, bus broadcast.Broadcaster, store *broadcast.PresenceStore, redisClient *redis.Client) *collab.ChangeFeed {
	accessService := collab.NewAccessService(db)
	feed := collab.NewChangeFeed(db, bus)
	shareService := collab.NewShareService(db, accessService, feed)
	commentService := collab.NewCommentService(db, accessService, feed)
	requestService := collab.NewRequestService(db, feed)

	requestLimiter := rate.NewSlidingWindowLimiter(redisClient, rate.LimiterConfig{
		Name: "access_requests",
		RateLimit: rate.RateLimit{
			Window:  time.Hour,
			MaxHits: 20,
		},
	})

	collabHandler := handlers.NewCollabHandler(db, accessService, store)
	shareHandler := handlers.NewShareHandler(db, shareService)
	commentHandler := handlers.NewCommentHandler(db, commentService)
	requestHandler := handlers.NewRequestHandler(db, requestService, requestLimiter)
	changeHandler := handlers.NewChangeHandler(db, feed)

	base := e.Group("/api/v1")
	auth := middleware.NewAuthMiddleware(cfg.JWT.Secret, db)
	base.Use(auth.Middleware())

	base.GET("/access/check", collabHandler.CheckAccess)
	base.GET("/presence", collabHandler.Presence,
		middleware.RequireResourceAccess(accessService, models.PermissionView))

	shares := base.Group("/shares")
	shares.POST("", shareHandler.Create)
	shares.GET("", shareHandler.ListByResource)
	shares.GET("/shared-with-me", shareHandler.SharedWithMe)
	shares.GET("/my-shares", shareHandler.MyShares)
	shares.GET("/search-users", shareHandler.SearchUsers)
	shares.PUT("/:id", shareHandler.Update)
	shares.DELETE("/:id", shareHandler.Delete)

	comments := base.Group("/comments")
	comments.POST("", commentHandler.Create)
	comments.GET("", commentHandler.List)
	comments.PUT("/:id", commentHandler.Update)
	comments.DELETE("/:id", commentHandler.Delete)

	requests := base.Group("/access-requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", requestHandler.List)
	requests.PUT("/:id", requestHandler.Resolve)

	base.GET("/changes", changeHandler.Recent,
		middleware.RequireResourceAccess(accessService, models.PermissionView))

	return feed
}
