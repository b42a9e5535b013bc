package app

import (
	"html/template"
	"io/fs"
	"net/http"

	"taskhub/internal/auth"
	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/handlers"
	"taskhub/internal/repo"
	"taskhub/internal/service"
	"taskhub/web"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, db *pgxpool.Pool, rdb *redis.Client) {
	sessionStore := auth.NewStore(rdb, cfg.Session.TTL.Duration(), []byte(cfg.Session.Secret))
	userRepo := repo.NewPGUserRepo(db)
	userSvc := service.NewUserService(userRepo)
	taskRepo := repo.NewPGTaskRepo(db)
	taskCache := cache.NewTaskCache(rdb, cfg.Redis.DefaultTTL.Duration())
	taskSvc := service.NewTaskService(taskRepo, taskCache)

	authHandler := handlers.NewAuthHandler(sessionStore, userSvc, sessionStore.TTL())
	taskHandler := handlers.NewTaskHandler(taskSvc)
	pageHandler := handlers.NewPageHandler(taskSvc)

	r.SetHTMLTemplate(template.Must(template.ParseFS(web.Templates, "templates/*.html")))
	staticFS, _ := fs.Sub(web.Static, "static")
	r.StaticFS("/static", http.FS(staticFS))

	r.Use(requestID())
	r.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
		pageHandler.ServerError(c)
	}))
	r.Use(auth.CurrentUser(sessionStore, userSvc))
	r.NoRoute(pageHandler.NotFound)

	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(302, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	// Public pages.
	r.GET("/", pageHandler.Index)
	r.GET("/time", pageHandler.Time)
	r.GET("/auth/login", authHandler.LoginPage)
	r.POST("/auth/login", authHandler.Login)
	r.GET("/auth/register", authHandler.RegisterPage)
	r.POST("/auth/register", authHandler.Register)
	r.GET("/auth/logout", authHandler.Logout)
	r.POST("/auth/logout", authHandler.Logout)

	// Protected pages: missing session means a redirect to the login page,
	// not an error body.
	pages := r.Group("", auth.RequireLogin(sessionStore))
	pages.GET("/tasks", pageHandler.Tasks)
	pages.GET("/tasks/calendar", pageHandler.Calendar)
	pages.GET("/calendar", pageHandler.CalendarRedirect)

	// Protected JSON API: missing session means 401.
	api := r.Group("/api/v1", auth.RequireSession(sessionStore))
	registerTaskRoutes(api, taskHandler)
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.POST("/tasks", h.Create)
	api.GET("/tasks", h.List)
	api.GET("/tasks/search", h.Search)
	api.GET("/tasks/overdue", h.Overdue)
	api.GET("/tasks/:id", h.GetByID)
	api.PATCH("/tasks/:id", h.Update)
	api.DELETE("/tasks/:id", h.Delete)
	api.POST("/tasks/:id/complete", h.Complete)
}

// requestID tags every request with an id for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
