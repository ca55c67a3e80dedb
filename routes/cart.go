package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/nischalstha-ns/e-commerce-sub001/common/errors"
	"github.com/nischalstha-ns/e-commerce-sub001/common/logger"
	cmw "github.com/nischalstha-ns/e-commerce-sub001/common/middleware"
	"github.com/nischalstha-ns/e-commerce-sub001/controllers"
	"github.com/nischalstha-ns/e-commerce-sub001/middleware"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"go.uber.org/zap"
)

const ServiceName = "cart-service"

// RequestTimeout bounds every non-streaming cart request.
var RequestTimeout = 30 * time.Second

// Options carries the cross-cutting pieces the router is built from.
type Options struct {
	Logger         *zap.Logger
	Metrics        awspkg.MetricsRecorder
	RateLimiter    *cmw.RateLimiter
	AllowedOrigins []string
	Auth           middleware.Authenticator
}

// NewRouter builds the gin engine with the global middleware chain and the
// cart routes.
func NewRouter(cc *controllers.CartController, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(cmw.RequestLogger(opts.Logger))
	r.Use(apperrors.ErrorMiddleware())
	r.Use(cmw.SecurityHeaders())
	r.Use(cmw.CORSMiddleware(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(cmw.MetricsMiddleware(opts.Metrics, ServiceName))
	}

	r.GET("/health", cc.Health)
	RegisterCartRoutes(r, cc, opts)
	return r
}

func RegisterCartRoutes(r *gin.Engine, cc *controllers.CartController, opts Options) {
	api := r.Group("/cart")
	api.Use(middleware.AuthMiddleware(opts.Auth))
	if opts.RateLimiter != nil {
		api.Use(cmw.RateLimitMiddleware(opts.RateLimiter))
	}

	// the change stream is long-lived and stays outside the request timeout
	api.GET("/stream", cc.Stream)

	timed := api.Group("", requestTimeout(RequestTimeout))
	{
		timed.GET("", cc.GetCart)
		timed.POST("/items", cc.AddItem)
		timed.PUT("/items", cc.UpdateItem)
		timed.DELETE("/items", cc.RemoveItem)
		timed.DELETE("", cc.ClearCart)
		timed.POST("/checkout", cc.Checkout)
	}
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
