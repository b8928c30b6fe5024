package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/foodorder/pkg/auth"
	"github.com/example/foodorder/pkg/menu"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/order"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type orderLine struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	Items         []orderLine `json:"items"`
	PaymentMethod string      `json:"paymentMethod"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sess, err := g.services.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sess, err := g.services.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		g.writeError(c, err)
		return
	}

	if g.services.Limiter != nil {
		if err := g.services.Limiter.Reset(c.Request.Context(), loginLimitKey(c.ClientIP())); err != nil {
			g.logger.Warn("failed to reset login limit", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, sess)
}

func (g *Gateway) listFood(c *gin.Context) {
	items, err := g.services.Menu.List(c.Request.Context(), models.Category(c.Query("category")))
	if err != nil {
		g.writeError(c, err)
		return
	}
	if items == nil {
		items = []*models.MenuItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (g *Gateway) getFood(c *gin.Context) {
	item, err := g.services.Menu.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) createFood(c *gin.Context) {
	var in menu.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	item, err := g.services.Menu.Create(c.Request.Context(), in)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (g *Gateway) updateFood(c *gin.Context) {
	var patch menu.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	item, err := g.services.Menu.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) deleteFood(c *gin.Context) {
	if err := g.services.Menu.Delete(c.Request.Context(), c.Param("id")); err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Food item removed"})
}

func (g *Gateway) createOrder(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	method, err := order.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		g.writeError(c, err)
		return
	}

	lines := make([]order.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, order.LineRequest{ItemID: it.ItemID, Quantity: it.Quantity})
	}

	res, err := g.services.Orders.PlaceOrder(c.Request.Context(), order.PlaceOrderInput{
		UserID:        claims.UserID,
		UserName:      claims.Name,
		Lines:         lines,
		PaymentMethod: method,
	})
	if err != nil {
		g.writeError(c, err)
		return
	}

	if res.Intent == nil {
		c.JSON(http.StatusCreated, res.Order)
		return
	}

	var intent interface{} = res.Intent
	if res.Intent.Payload != nil {
		intent = res.Intent.Payload
	}
	c.JSON(http.StatusCreated, gin.H{
		"orderId":       res.Order.ID.Hex(),
		"razorpayOrder": intent,
	})
}

func (g *Gateway) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claims, _ := auth.ClaimsFrom(c)
	o, verified, err := g.services.Orders.VerifyPayment(c.Request.Context(), requester(claims), req.OrderID, req.PaymentID, req.Signature)
	g.writeVerification(c, o, verified, err)
}

func (g *Gateway) payOrder(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, verified, err := g.services.Orders.VerifyOrderPayment(c.Request.Context(), requester(claims), c.Param("id"), req.PaymentID, req.Signature)
	g.writeVerification(c, o, verified, err)
}

func (g *Gateway) writeVerification(c *gin.Context, o *models.Order, verified bool, err error) {
	if err != nil {
		g.writeError(c, err)
		return
	}
	if !verified {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Payment verification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment verified successfully", "order": o})
}

func (g *Gateway) listMyOrders(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)

	orders, err := g.services.Orders.ListMyOrders(c.Request.Context(), claims.UserID)
	if err != nil {
		g.writeError(c, err)
		return
	}
	writeOrders(c, orders)
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.services.Orders.ListOrders(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	writeOrders(c, orders)
}

func writeOrders(c *gin.Context, orders []*models.Order) {
	if orders == nil {
		orders = []*models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (g *Gateway) getOrder(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)

	o, err := g.services.Orders.GetOrder(c.Request.Context(), c.Param("id"), requester(claims))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	o, err := g.services.Orders.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) orderAudit(c *gin.Context) {
	id := c.Param("id")
	if !models.IsValidID(id) {
		g.writeError(c, order.ErrOrderNotFound)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := g.services.Audit.ForEntity(c.Request.Context(), id, limit)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func requester(claims *auth.Claims) order.Requester {
	return order.Requester{UserID: claims.UserID, IsAdmin: claims.IsAdmin}
}
