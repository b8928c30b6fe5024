package gateway

import (
	"errors"
	"net/http"

	"github.com/example/foodorder/pkg/auth"
	"github.com/example/foodorder/pkg/menu"
	"github.com/example/foodorder/pkg/order"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps a service error to a status code and JSON body.
// Anything unrecognised is logged and reported as a generic 500.
func (g *Gateway) writeError(c *gin.Context, err error) {
	var (
		invalidInput *order.InvalidInputError
		invalidRef   *order.InvalidItemReferenceError
		notFound     *order.ItemNotFoundError
		unavailable  *order.ItemUnavailableError
		validation   *menu.ValidationError
	)

	switch {
	case errors.As(err, &invalidRef):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid food item IDs", "invalidIds": invalidRef.IDs})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"message": notFound.Error(), "itemId": notFound.ItemID})
	case errors.Is(err, order.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Some food items were not found"})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusConflict, gin.H{"message": unavailable.Error(), "itemId": unavailable.ID})
	case errors.As(err, &invalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"message": invalidInput.Message, "field": invalidInput.Field})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"message": validation.Message, "field": validation.Field})
	case errors.Is(err, order.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, order.ErrPaymentServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Payment service is not available"})
	case errors.Is(err, order.ErrPaymentGateway):
		g.logger.Error("payment gateway failure", zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Payment gateway error"})
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
	case errors.Is(err, order.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "Not authorized to access this order"})
	case errors.Is(err, order.ErrInvalidStatusTransition):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	case errors.Is(err, order.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"message": "Order was modified concurrently, please retry"})
	case errors.Is(err, order.ErrPaymentAlreadyFinalized):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Payment has already been finalized"})
	case errors.Is(err, menu.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid food item ID"})
	case errors.Is(err, menu.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Food item not found"})
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"message": "User already exists"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
	default:
		g.logger.Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
