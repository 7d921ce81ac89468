package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/api/handlers"
	"github.com/codyseavey/inventory-valuator/internal/services"
)

type RouterConfig struct {
	CORSOrigins      []string
	FrontendDistPath string
}

// Services are the collaborators the HTTP layer calls into
type Services struct {
	Valuer    services.AccountValuer
	Resolver  handlers.ProfileResolver
	Worker    handlers.RevaluationQueue
	Inventory handlers.InventoryLookup
	Store     handlers.ValuationArchive
}

func SetupRouter(cfg RouterConfig, svc Services, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.Default()
	router.Use(RequestID(), Metrics(), LogServerErrors(logger.Named("HTTP")))

	frontendPath := cfg.FrontendDistPath
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	// Initialize handlers
	valuationHandler := handlers.NewValuationHandler(svc.Valuer, svc.Resolver, svc.Worker)
	inventoryHandler := handlers.NewInventoryHandler(svc.Inventory)
	importExportHandler := handlers.NewImportExportHandler(svc.Store)

	// API routes
	api := router.Group("/api")
	{
		value := api.Group("/value/steam")
		{
			value.GET("/profile", valuationHandler.ValueProfile)
			value.POST("/:steamId64/refresh", valuationHandler.RefreshValuation)
			value.GET("/status", valuationHandler.GetStatus)
		}

		steam := api.Group("/steam")
		{
			steam.GET("/inventory/:steamId64", inventoryHandler.GetInventory)
		}

		importExport := api.Group("/import-export")
		{
			importExport.GET("/export/:format", importExportHandler.ExportAll)
			importExport.GET("/export/:format/:steamId64", importExportHandler.ExportOne)
			importExport.POST("/import/:format", importExportHandler.Import)
			importExport.DELETE("/reset", importExportHandler.Reset)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		router.Static("/assets", filepath.Join(frontendPath, "assets"))
		router.StaticFile("/vite.svg", filepath.Join(frontendPath, "vite.svg"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
