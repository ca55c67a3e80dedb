package controllers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/nischalstha-ns/e-commerce-sub001/common/errors"
	"github.com/nischalstha-ns/e-commerce-sub001/common/logger"
	"github.com/nischalstha-ns/e-commerce-sub001/middleware"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/notifier"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/nischalstha-ns/e-commerce-sub001/services"
	"go.uber.org/zap"
)

// StreamKeepAlive is how often an idle change stream sends a ping event.
var StreamKeepAlive = 25 * time.Second

// Subscriber opens per-owner change feeds.
type Subscriber interface {
	Subscribe(ctx context.Context, ownerID string) (*notifier.Subscription, error)
}

// HealthChecker reports whether the cart store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type CartController struct {
	cartService services.CartService
	feed        Subscriber
	health      HealthChecker
	logger      *zap.Logger
}

func NewCartController(svc services.CartService, feed Subscriber, health HealthChecker, logger *zap.Logger) *CartController {
	return &CartController{
		cartService: svc,
		feed:        feed,
		health:      health,
		logger:      logger,
	}
}

// GetCart handles GET /cart
func (cc *CartController) GetCart(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	cart, err := cc.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddItem handles POST /cart/items
func (cc *CartController) AddItem(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		cc.fail(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}
	cart, err := cc.cartService.AddToCart(c.Request.Context(), userID, req)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// UpdateItem handles PUT /cart/items
func (cc *CartController) UpdateItem(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	var req models.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		cc.fail(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}
	cart, err := cc.cartService.UpdateCartItem(c.Request.Context(), userID, req)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// RemoveItem handles DELETE /cart/items. The key comes from the JSON body,
// or from the query string when there is no body.
func (cc *CartController) RemoveItem(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	var req models.RemoveItemRequest
	var err error
	if c.Request.Body != nil && c.Request.Body != http.NoBody && c.Request.ContentLength != 0 {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBindQuery(&req)
	}
	if err != nil {
		cc.fail(c, apperrors.ErrInvalidInput.Wrap(err))
		return
	}
	cart, err := cc.cartService.RemoveFromCart(c.Request.Context(), userID, req.Key())
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// ClearCart handles DELETE /cart
func (cc *CartController) ClearCart(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	cart, err := cc.cartService.ClearCart(c.Request.Context(), userID)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// Checkout handles POST /cart/checkout
func (cc *CartController) Checkout(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	res, err := cc.cartService.Checkout(c.Request.Context(), userID, c.GetHeader("Idempotency-Key"))
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "checkout initiated",
		"event_id":       res.EventID,
		"item_count":     res.ItemCount,
		"total_quantity": res.TotalQuantity,
		"replayed":       res.Replayed,
	})
}

// Stream handles GET /cart/stream. It sends the current cart, then the
// whole cart again after every change, as "cart" server-sent events.
func (cc *CartController) Stream(c *gin.Context) {
	userID, ok := cc.owner(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// subscribe before reading so no change between the two is lost
	sub, err := cc.feed.Subscribe(ctx, userID)
	if err != nil {
		cc.fail(c, apperrors.ErrServiceUnavailable.Wrap(err))
		return
	}
	defer sub.Close()

	cart, err := cc.cartService.GetCart(ctx, userID)
	if err != nil {
		cc.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("cart", cart)
	c.Writer.Flush()

	log := logger.For(ctx, cc.logger).With(zap.String("user_id", userID))
	log.Debug("cart stream opened")
	defer log.Debug("cart stream closed")

	keepAlive := time.NewTicker(StreamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case cart, ok := <-sub.C:
			if !ok {
				return
			}
			c.SSEvent("cart", cart)
			c.Writer.Flush()
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}

// Health handles GET /health
func (cc *CartController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := cc.health.Ping(ctx); err != nil {
		cc.logger.Warn("cart store health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (cc *CartController) owner(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		cc.fail(c, apperrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func (cc *CartController) fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.For(c.Request.Context(), cc.logger).Error("cart request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message, "code": appErr.Code})
}

// toAppError maps engine errors onto HTTP errors.
func toAppError(err error) *apperrors.Error {
	var verr *services.ValidationError
	var appErr *apperrors.Error
	switch {
	case errors.As(err, &verr):
		return apperrors.ErrValidation.WithMessage(verr.Error()).Wrap(err)
	case errors.Is(err, repository.ErrInvalidIdentifier):
		return apperrors.ErrInvalidInput.Wrap(err)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.ErrConflict.WithMessage("cart was modified concurrently, retry").Wrap(err)
	case errors.Is(err, services.ErrCheckoutIncomplete):
		return apperrors.ErrInternalServer.
			WithMessage("checkout was published but the cart was not cleared; retry with the same Idempotency-Key").
			Wrap(err)
	case errors.Is(err, services.ErrEventPublish):
		return apperrors.ErrServiceUnavailable.WithMessage("failed to publish checkout event").Wrap(err)
	case errors.Is(err, services.ErrStore):
		if storeUnavailable(err) {
			return apperrors.ErrStoreUnavailable.Wrap(err)
		}
		return apperrors.ErrStoreFailure.Wrap(err)
	case errors.As(err, &appErr):
		return appErr
	}
	return apperrors.ErrInternalServer.Wrap(err)
}

func storeUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
