package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"restaurant-ordering/internal/logger"
	"restaurant-ordering/internal/models"
)

const requestIDKey = "request_id"

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
	timeout time.Duration
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		service: service,
		logger:  log,
		timeout: timeout,
	}
}

// SetupRoutes builds the gin engine with middleware and order routes
func (h *Handler) SetupRoutes(allowedOrigins []string) *gin.Engine {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(h.withLogging())

	r.GET("/health", h.HealthCheck)
	r.NoRoute(func(c *gin.Context) {
		h.writeError(c, models.Errorf(models.ErrNotFound, "no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})

	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/history", h.History)
		orders.PATCH("/:id/status", h.UpdateStatus)
		orders.PATCH("/:id/payment", h.UpdatePayment)
		orders.PATCH("/:id/staff", h.AssignStaff)
		orders.POST("/:id/cancel", h.Cancel)
		orders.PATCH("/:id/items/:itemId/status", h.UpdateItemStatus)
	}
	return r
}

// CreateOrder handles POST /orders requests
func (h *Handler) CreateOrder(c *gin.Context) {
	requestID := c.GetString(requestIDKey)

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, models.Errorf(models.ErrValidation, "invalid JSON body: %v", err))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.service.CreateOrder(ctx, &req, requestID)
	if err != nil {
		h.logFailure("order_creation_failed", "Failed to create order", requestID, err, map[string]interface{}{
			"branch_id": req.BranchID,
			"table_id":  req.TableID,
		})
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := h.service.GetOrder(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) History(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	history, err := h.service.History(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type statusRequest struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changedBy"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondOrder(c, "order_status_update_failed", func(ctx context.Context, requestID string) (*models.Order, error) {
		return h.service.UpdateStatus(ctx, c.Param("id"), req.Status, req.ChangedBy, requestID)
	})
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var req paymentRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondOrder(c, "order_payment_update_failed", func(ctx context.Context, requestID string) (*models.Order, error) {
		return h.service.UpdatePayment(ctx, c.Param("id"), req.PaymentStatus, req.PaymentMethod, requestID)
	})
}

type staffRequest struct {
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
}

func (h *Handler) AssignStaff(c *gin.Context) {
	var req staffRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondOrder(c, "order_staff_update_failed", func(ctx context.Context, requestID string) (*models.Order, error) {
		return h.service.AssignStaff(ctx, c.Param("id"), req.StaffID, req.StaffName, requestID)
	})
}

type cancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
	ChangedBy          string `json:"changedBy"`
}

func (h *Handler) Cancel(c *gin.Context) {
	var req cancelRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	h.respondOrder(c, "order_cancel_failed", func(ctx context.Context, requestID string) (*models.Order, error) {
		return h.service.Cancel(ctx, c.Param("id"), req.CancellationReason, req.ChangedBy, requestID)
	})
}

func (h *Handler) UpdateItemStatus(c *gin.Context) {
	var req statusRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondOrder(c, "order_item_update_failed", func(ctx context.Context, requestID string) (*models.Order, error) {
		return h.service.UpdateItemStatus(ctx, c.Param("id"), c.Param("itemId"), req.Status, requestID)
	})
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := h.service.HealthCheck(ctx)

	code := http.StatusOK
	if health["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    health["status"],
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "order-service",
		"checks":    health,
	})
}

func (h *Handler) respondOrder(c *gin.Context, action string, call func(ctx context.Context, requestID string) (*models.Order, error)) {
	requestID := c.GetString(requestIDKey)
	ctx, cancel := h.requestContext(c)
	defer cancel()

	order, err := call(ctx, requestID)
	if err != nil {
		h.logFailure(action, "Order update failed", requestID, err, map[string]interface{}{
			"order_id": c.Param("id"),
		})
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.writeError(c, models.Errorf(models.ErrValidation, "invalid JSON body: %v", err))
		return false
	}
	return true
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// logFailure logs domain rejections at debug and everything else as an error
func (h *Handler) logFailure(action, message, requestID string, err error, fields map[string]interface{}) {
	if models.KindOf(err) != "" {
		fields["code"] = errorCode(err)
		h.logger.Debug(action, err.Error(), requestID, fields)
		return
	}
	h.logger.Error(action, message, requestID, err, fields)
}

// StatusCode maps an error kind to its HTTP status
func StatusCode(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var e *models.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL_ERROR"
}

// writeError writes an error response in JSON format. Infrastructure details are not exposed.
func (h *Handler) writeError(c *gin.Context, err error) {
	code := StatusCode(err)
	body := gin.H{
		"error":      err.Error(),
		"code":       errorCode(err),
		"kind":       models.KindOf(err),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": c.GetString(requestIDKey),
	}
	if code == http.StatusInternalServerError {
		body["error"] = "Internal server error"
		body["kind"] = "internal"
	}
	var e *models.Error
	if errors.As(err, &e) {
		if e.Field != "" {
			body["field"] = e.Field
		}
		if e.Retryable {
			body["retryable"] = true
		}
	}
	c.AbortWithStatusJSON(code, body)
}

// withLogging assigns a request id and logs every request
func (h *Handler) withLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      c.Request.Method,
				"path":        c.Request.URL.Path,
				"remote_addr": c.ClientIP(),
				"user_agent":  c.Request.UserAgent(),
			})

		c.Next()

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status()),
			requestID,
			map[string]interface{}{
				"method":      c.Request.Method,
				"path":        c.Request.URL.Path,
				"status_code": c.Writer.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
	}
}
