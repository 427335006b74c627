package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"playtube/api/internal/cache"
	"playtube/api/internal/config"
	"playtube/api/internal/middleware"
	"playtube/api/internal/repository"
	"playtube/api/internal/service"
	"playtube/api/internal/storage"
)

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	accounts  *service.AccountService
	users     service.UserStore
	userCache *cache.UserCache
	db        *pgxpool.Pool
	redis     *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	media := service.NewMediaService(store, cfg, log)
	accounts := service.NewAccountService(userRepo, media, cfg, log)
	userCache := cache.NewUserCache(redisClient, cfg.Cache.UserTTL)

	return HandlerSet{
		log:       log,
		cfg:       cfg,
		accounts:  accounts,
		users:     userRepo,
		userCache: userCache,
		db:        db,
		redis:     redisClient,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	users := v1.Group("/users")
	users.POST("/register", h.RegisterAccount)
	users.POST("/login", h.Login)
	users.POST("/refresh-token", h.RefreshToken)

	protected := v1.Group("/users")
	protected.Use(middleware.Auth(h.cfg, h.users, h.userCache))
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)
	protected.POST("/change-password", h.ChangePassword)
	protected.PATCH("/update-account", h.UpdateAccount)
}
