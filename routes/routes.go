// routes/routes.go
package routes

import (
	"saathi/config"
	"saathi/controllers"
	"saathi/interfaces"
	"saathi/middleware"
	"saathi/services"
	"saathi/utils"
	"saathi/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Dependencies are the storage drivers and outbound gateways chosen at
// startup. Redis may be nil when running on the memory driver.
type Dependencies struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Store    interfaces.Store
	Tracker  interfaces.LocationTracker
	Redis    *redis.Client
	Hub      *websocket.Hub
	Push     interfaces.PushGateway
	SMS      interfaces.SMSGateway
	Email    interfaces.EmailGateway
	Geocoder interfaces.Geocoder
}

// SetupRoutes initializes all application routes. The returned services
// let the caller drain background work on shutdown.
func SetupRoutes(deps Dependencies) (*gin.Engine, *Services) {
	router := gin.New()

	// Initialize services
	services := initializeServices(deps)

	// Initialize controllers
	controllers := initializeControllers(services, deps)

	// Global middleware
	setupGlobalMiddleware(router, deps)

	// Setup route groups
	authMiddleware := middleware.NewAuthMiddleware(utils.NewJWTService(deps.Config.JWTSecret))
	setupPublicRoutes(router, controllers)
	setupAPIRoutes(router, controllers, authMiddleware, deps)

	return router, services
}

// Services initialization
type Services struct {
	Dispatcher *services.NotificationDispatcher
	Engine     *services.BroadcastEngine
	Alerter    *services.ContactAlerter
	SOS        *services.SOSService
	Profile    *services.ProfileService
}

func initializeServices(deps Dependencies) *Services {
	cfg := deps.Config

	dispatcher := services.NewNotificationDispatcher(deps.Push, deps.Store, deps.Store, deps.Hub, cfg.PushConcurrency)
	engine := services.NewBroadcastEngine(deps.Store, deps.Store, deps.Store, dispatcher, deps.Geocoder, cfg.GeocodeTimeout)
	alerter := services.NewContactAlerter(deps.SMS, deps.Email)
	policy := services.NewDisclosurePolicy(deps.Store)

	return &Services{
		Dispatcher: dispatcher,
		Engine:     engine,
		Alerter:    alerter,
		SOS: services.NewSOSService(
			deps.Store,
			deps.Store,
			deps.Store,
			deps.Tracker,
			engine,
			dispatcher,
			policy,
			alerter,
			cfg.AllowAnonymousTrigger,
		),
		Profile: services.NewProfileService(deps.Store),
	}
}

// Controllers initialization
type Controllers struct {
	SOS     *controllers.SOSController
	Profile *controllers.ProfileController
	Health  *controllers.HealthController
}

func initializeControllers(services *Services, deps Dependencies) *Controllers {
	return &Controllers{
		SOS:     controllers.NewSOSController(services.SOS, deps.Hub),
		Profile: controllers.NewProfileController(services.Profile),
		Health:  controllers.NewHealthController(deps.Store, deps.Redis, deps.Hub, deps.Push, deps.SMS, deps.Email, deps.Geocoder),
	}
}

// Global middleware setup
func setupGlobalMiddleware(router *gin.Engine, deps Dependencies) {
	// Basic middleware
	router.Use(middleware.LoggerMiddleware(middleware.LoggerConfig{
		Logger:         deps.Logger,
		SkipPaths:      []string{"/health", "/metrics", "/favicon.ico"},
		SkipUserAgents: []string{"kube-probe", "GoogleHC"},
	}))
	router.Use(middleware.NewErrorHandler(deps.Config.Environment, deps.Logger).Handle())

	// Security middleware
	router.Use(middleware.CORS(middleware.NewCORSConfig(deps.Config.AllowedOrigins)))
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, controllers *Controllers) {
	router.GET("/health", controllers.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func setupAPIRoutes(router *gin.Engine, controllers *Controllers, auth *middleware.AuthMiddleware, deps Dependencies) {
	api := router.Group("/api/v1")
	api.Use(middleware.APIRateLimit(deps.Redis))

	SetupSOSRoutes(api, controllers.SOS, auth, deps)
	SetupUserRoutes(api, controllers.Profile, auth)
}
