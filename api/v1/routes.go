package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/dashboard"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/forecasting"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/planning"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/ratelimit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/teams"
)

// CORS allows browser clients on any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+auth.APIKeyHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RegisterRoutes mounts every handler on router
func (c *Components) RegisterRoutes(router *gin.Engine) {
	router.Use(c.Metrics.Middleware(), CORS())

	router.GET("/health", c.health)
	router.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	api := router.Group("/api/v1")

	authHandler := auth.NewHandler(c.Auth, c.Logger)
	authHandler.RegisterRoutes(api)

	companyHandler := companies.NewHandler(c.Companies, c.Logger)
	dashboardHandler := dashboard.NewHandler(c.Dashboard, c.Cache, c.Logger)
	forecastingHandler := forecasting.NewHandler(c.Forecasting, c.Logger)
	planningHandler := planning.NewHandler(c.Planning, c.Config.Forecasting.DefaultYears, c.Logger)
	reportsHandler := reports.NewHandler(c.Reports, c.Logger)
	auditHandler := audit.NewHandler(c.Recorder, c.Logger)
	teamsHandler := teams.NewHandler(c.Teams, c.Logger)

	session := api.Group("", auth.RequireAuth(c.Auth.Tokens()))
	{
		companyHandler.RegisterRoutes(session)
		forecastingHandler.RegisterRoutes(session)

		company := session.Group("/companies/:id", companyHandler.CompanyAccess())
		dashboardHandler.RegisterRoutes(company)
		planningHandler.RegisterRoutes(company)
		forecastingHandler.RegisterCompanyRoutes(company)

		reportsHandler.RegisterRoutes(session.Group("/reports/companies/:id", companyHandler.CompanyAccess()))

		// team members reach their team without owning the company
		teamsHandler.RegisterRoutes(session.Group("/teams/companies/:id"))

		session.GET("/ws/alerts", c.Hub.ServeGin)
	}

	admin := api.Group("/admin", auth.RequireAuth(c.Auth.Tokens()), auth.RequireRole(auth.RoleAdmin))
	{
		dashboardHandler.RegisterAdminRoutes(admin)
		reportsHandler.RegisterAdminRoutes(admin)
		auditHandler.RegisterAdminRoutes(admin)
	}

	companyHandler.RegisterSyncRoutes(api,
		auth.RequireAPIKey(c.Auth),
		c.Limiter.Middleware(ratelimit.HeaderKey(auth.APIKeyHeader)),
	)
}

func (c *Components) health(ctx *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"model":      c.Model != nil,
		"ws_clients": c.Hub.GetConnectionCount(),
	}
	if err := c.DB.PingContext(ctx.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	ctx.JSON(status, body)
}
