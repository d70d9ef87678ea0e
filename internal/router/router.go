package router

import (
	"time"

	"go-consign/internal/ai"
	"go-consign/internal/auth"
	"go-consign/internal/config"
	"go-consign/internal/consignment"
	"go-consign/internal/handlers"
	"go-consign/internal/metrics"
	"go-consign/internal/middleware"
	"go-consign/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived objects the routes need. Redis and Agent are optional.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Service *consignment.Service
	Agent   *ai.Agent
}

// New wires middleware and routes and returns the engine.
func New(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(metrics.Middleware())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		// no origin list: open API, but then no cookies
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration())
	authH := handlers.NewAuthHandler(issuer, cfg.AllowRegistration)
	bagH := handlers.NewConsignmentHandler(d.Service)

	// --- PUBLIC ---
	r.GET("/health", handlers.Health(d.DB, d.Redis))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/login", authH.Login)
	r.POST("/register", authH.Register)

	// --- PROTECTED ROUTES ---
	api := r.Group("/api", middleware.AuthMiddleware(issuer))
	{
		// STAFF & ADMIN
		api.GET("/dashboard", handlers.GetDashboard)
		api.GET("/profile", handlers.GetProfile)
		api.PUT("/profile", handlers.UpdateProfile)

		api.GET("/products", handlers.GetProducts)
		api.GET("/products/:id", handlers.GetProduct)
		api.GET("/variants/scan/:barcode", handlers.ScanVariant)
		api.GET("/stock-movements", handlers.GetStockMovements)

		api.GET("/resellers", handlers.GetResellers)
		api.GET("/resellers/:id", handlers.GetReseller)
		api.POST("/resellers", handlers.CreateReseller(cfg.DefaultCommission()))
		api.PUT("/resellers/:id", handlers.UpdateReseller)
		api.DELETE("/resellers/:id", handlers.DeleteReseller)

		api.GET("/clients", handlers.GetClients)
		api.GET("/clients/:id", handlers.GetClient)
		api.POST("/clients", handlers.CreateClient)
		api.PUT("/clients/:id", handlers.UpdateClient)
		api.DELETE("/clients/:id", handlers.DeleteClient)

		api.GET("/consignments", bagH.List)
		api.POST("/consignments", bagH.Create)
		api.GET("/consignments/:id", bagH.Get)
		api.GET("/consignments/:id/preview", bagH.Preview)
		api.POST("/consignments/:id/returns/scan", bagH.ScanReturn)
		api.PATCH("/consignments/:id/items/:itemId/returned", bagH.AdjustReturn)
		api.POST("/consignments/:id/close", bagH.Close)

		// ADMIN ONLY
		admin := api.Group("", middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/products", handlers.AddProduct)
			admin.PUT("/products/:id", handlers.UpdateProduct)
			admin.DELETE("/products/:id", handlers.DeleteProduct)
			admin.PATCH("/variants/:id/stock", handlers.AdjustVariantStock)

			admin.GET("/users", handlers.GetUsers)
			admin.POST("/users", handlers.CreateUser)
			admin.PUT("/users/:id", handlers.UpdateUser)
			admin.DELETE("/users/:id", handlers.DeleteUser)

			admin.GET("/reports/settlements", handlers.GetSettlementReport)
			admin.GET("/reports/valuation", handlers.GetStockValuation)

			admin.POST("/ask", handlers.AskAI(d.Agent))
		}
	}

	return r
}
