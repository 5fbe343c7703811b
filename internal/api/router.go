package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
	reservationHttp "github.com/nekogravitycat/reservation-backend/internal/reservation/http"
	"github.com/nekogravitycat/reservation-backend/internal/status"
	statusHttp "github.com/nekogravitycat/reservation-backend/internal/status/http"
)

// Config holds the dependencies the router needs.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	JWTManager         *auth.JWTManager
	StatusService      status.Service
	ReservationService reservation.Service

	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(logger), Recovery(logger))

	// Configure CORS (Cross-Origin Resource Sharing).
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
		"http://localhost:3000",
	}
	if cfg.IsProduction {
		corsCfg.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader, "Content-Disposition"}
	if len(corsCfg.AllowOrigins) > 0 {
		r.Use(cors.New(corsCfg))
	}

	r.GET("/healthz", healthHandler(cfg.Ready))
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// sysAdminMiddleware: Further checks if the authenticated user has System Admin privileges.
	sysAdminMiddleware := auth.RequireSystemAdmin()

	statusHandler := statusHttp.NewHandler(cfg.StatusService)
	reservationHandler := reservationHttp.NewHandler(cfg.ReservationService)

	v1 := r.Group("/v1")
	{
		statusHttp.RegisterRoutes(v1, statusHandler, authMiddleware, sysAdminMiddleware)
		reservationHttp.RegisterRoutes(v1, reservationHandler, authMiddleware, sysAdminMiddleware)
	}

	return r
}

func healthHandler(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
