package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/api"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/cache"
	"github.com/nekogravitycat/reservation-backend/internal/collab"
	"github.com/nekogravitycat/reservation-backend/internal/identity"
	"github.com/nekogravitycat/reservation-backend/internal/inventory"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/notify"
	"github.com/nekogravitycat/reservation-backend/internal/organization"
	"github.com/nekogravitycat/reservation-backend/internal/pricing"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

// Collaborators holds the base URLs of the external services.
type Collaborators struct {
	IdentityURL     string
	InventoryURL    string
	PricingURL      string
	OrganizationURL string
	Token           string
	Timeout         time.Duration
	RequestsPerSec  int
}

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       *pgxpool.Pool
	Redis        *redis.Client // nil disables caching
	Queue        notify.Enqueuer
	JWTSecret    string

	Collaborators        Collaborators
	DefaultTTL           time.Duration
	ShortTTL             time.Duration
	CancelRequiresRefund bool

	Metrics  *metrics.Registry
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router       *gin.Engine
	JWTManager   *auth.JWTManager
	Reservations reservation.Service
	Inventory    inventory.Client
	Dispatcher   *notify.Dispatcher
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Tokens are minted by the identity service; this process only verifies them.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Hour)
	c := cache.New(cfg.Redis, cfg.Metrics, logger.Named("cache"))

	// Collaborators
	collabOpts := func(baseURL string) collab.Options {
		return collab.Options{
			BaseURL:        baseURL,
			Token:          cfg.Collaborators.Token,
			Timeout:        cfg.Collaborators.Timeout,
			RequestsPerSec: cfg.Collaborators.RequestsPerSec,
			Metrics:        cfg.Metrics,
		}
	}
	identityClient := identity.NewClient(collab.NewClient("identity", collabOpts(cfg.Collaborators.IdentityURL)))
	inventoryClient := inventory.NewClient(collab.NewClient("inventory", collabOpts(cfg.Collaborators.InventoryURL)))
	pricingClient := pricing.NewClient(collab.NewClient("pricing", collabOpts(cfg.Collaborators.PricingURL)))
	orgClient := organization.NewClient(collab.NewClient("organization", collabOpts(cfg.Collaborators.OrganizationURL)))

	dispatcher := notify.NewDispatcher(cfg.Queue, cfg.Metrics, logger.Named("notify"))

	// Status Module
	statusRepo := status.NewPgxRepository(cfg.DBPool)
	statusService := status.NewService(statusRepo, c, cfg.DefaultTTL, logger.Named("status"))

	// Reservation Module
	reservationRepo := reservation.NewPgxRepository(cfg.DBPool)
	reservationService := reservation.NewService(reservation.Config{
		Repo:                 reservationRepo,
		Statuses:             statusService,
		Pricing:              pricingClient,
		Identity:             identityClient,
		Inventory:            inventoryClient,
		Organizations:        orgClient,
		Notifier:             dispatcher,
		Cache:                c,
		DefaultTTL:           cfg.DefaultTTL,
		ShortTTL:             cfg.ShortTTL,
		CancelRequiresRefund: cfg.CancelRequiresRefund,
		Metrics:              cfg.Metrics,
		Logger:               logger.Named("reservation"),
	})

	// API Router Config
	routerParams := api.Config{
		IsProduction:       cfg.IsProduction,
		ProdOrigins:        cfg.ProdOrigins,
		JWTManager:         jwtManager,
		StatusService:      statusService,
		ReservationService: reservationService,
		Logger:             logger.Named("http"),
		Gatherer:           cfg.Gatherer,
		Ready: func(ctx context.Context) error {
			if err := cfg.DBPool.Ping(ctx); err != nil {
				return err
			}
			if cfg.Redis != nil {
				return cfg.Redis.Ping(ctx).Err()
			}
			return nil
		},
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:       router,
		JWTManager:   jwtManager,
		Reservations: reservationService,
		Inventory:    inventoryClient,
		Dispatcher:   dispatcher,
	}
}
