package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/foodorder/pkg/auth"
	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/menu"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/order"
	"github.com/example/foodorder/pkg/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, in order.PlaceOrderInput) (*order.PlaceOrderResult, error)
	VerifyPayment(ctx context.Context, req order.Requester, intentID, paymentID, signature string) (*models.Order, bool, error)
	VerifyOrderPayment(ctx context.Context, req order.Requester, orderID, paymentID, signature string) (*models.Order, bool, error)
	SetStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string, req order.Requester) (*models.Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
}

type MenuService interface {
	List(ctx context.Context, category models.Category) ([]*models.MenuItem, error)
	Get(ctx context.Context, id string) (*models.MenuItem, error)
	Create(ctx context.Context, in menu.ItemInput) (*models.MenuItem, error)
	Update(ctx context.Context, id string, patch menu.ItemPatch) (*models.MenuItem, error)
	Delete(ctx context.Context, id string) error
}

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// AuditService reads the change history of an entity.
type AuditService interface {
	ForEntity(ctx context.Context, entityID string, limit int) ([]*repository.AuditLog, error)
}

// RateLimiter counts hits per key within a fixed window.
type RateLimiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Services bundles the collaborators the HTTP layer dispatches to.
// Limiter and Audit may be nil.
type Services struct {
	Orders  OrderService
	Menu    MenuService
	Auth    AuthService
	Audit   AuditService
	Tokens  *auth.TokenManager
	Limiter RateLimiter
}

type Gateway struct {
	config   *config.Config
	services Services
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.Gateway.AllowOrigins)))

	return &Gateway{
		config:   cfg,
		services: services,
		logger:   logger,
		router:   router,
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", requestIDHeader)
	c.ExposeHeaders = []string{requestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireUser := auth.Required(g.services.Tokens)
	requireAdmin := auth.AdminOnly()

	api := g.router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", g.register)
			authGroup.POST("/login", g.loginRateLimit(), g.login)
		}

		food := api.Group("/food")
		{
			food.GET("", g.listFood)
			food.GET("/:id", g.getFood)
			food.POST("", requireUser, requireAdmin, g.createFood)
			food.PUT("/:id", requireUser, requireAdmin, g.updateFood)
			food.DELETE("/:id", requireUser, requireAdmin, g.deleteFood)
		}

		orders := api.Group("/orders", requireUser)
		{
			orders.POST("", g.createOrder)
			orders.POST("/verify", g.verifyPayment)
			orders.GET("/myorders", g.listMyOrders)
			orders.GET("", requireAdmin, g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/pay", g.payOrder)
			orders.PUT("/:id/status", requireAdmin, g.updateOrderStatus)
			if g.services.Audit != nil {
				orders.GET("/:id/audit", requireAdmin, g.orderAudit)
			}
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Gateway.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
