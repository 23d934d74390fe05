package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hesapduragi/internal/apperrors"
	"hesapduragi/internal/auth"
	"hesapduragi/internal/models"
	"hesapduragi/internal/service"
	"hesapduragi/internal/store"
	"hesapduragi/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderReader covers the order lookups the HTTP layer serves directly
type OrderReader interface {
	GetOrderByNo(ctx context.Context, orderNo string) (*models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.Order, error)
}

// StatsReader serves the admin dashboard counters
type StatsReader interface {
	GetDailySales(ctx context.Context, day string) (int64, int64, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checkout *service.CheckoutService
	catalog  *service.CatalogService
	reviews  *service.ReviewService
	users    *service.UserService
	orders   OrderReader
	stats    StatsReader
	tokens   *auth.Manager
}

// NewHandler creates a new HTTP handler. stats may be nil when Redis is not
// configured; the dashboard endpoint then answers zeros.
func NewHandler(
	checkout *service.CheckoutService,
	catalog *service.CatalogService,
	reviews *service.ReviewService,
	users *service.UserService,
	orders OrderReader,
	stats StatsReader,
	tokens *auth.Manager,
) *Handler {
	return &Handler{
		checkout: checkout,
		catalog:  catalog,
		reviews:  reviews,
		users:    users,
		orders:   orders,
		stats:    stats,
		tokens:   tokens,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)

		v1.GET("/accounts", h.listAccounts)
		v1.GET("/accounts/:id", h.getAccount)
		v1.GET("/accounts/:id/reviews", h.listAccountReviews)

		v1.POST("/checkout", h.tokens.Optional(), h.checkoutCart)
		v1.POST("/accounts/:id/purchase", h.tokens.Required(), h.purchaseAccount)

		v1.GET("/orders", h.tokens.Required(), h.listMyOrders)
		v1.GET("/orders/:orderNo", h.tokens.Required(), h.getOrder)

		v1.POST("/reviews", h.tokens.Required(), h.submitReview)

		admin := v1.Group("/admin", h.tokens.Required(), auth.AdminOnly())
		{
			admin.POST("/accounts", h.createAccount)
			admin.PUT("/accounts/:id", h.updateAccount)
			admin.DELETE("/accounts/:id", h.deleteAccount)
			admin.PUT("/reviews/moderate", h.moderateReview)
			admin.POST("/ratings/refresh", h.refreshRatings)
			admin.GET("/orders", h.listAllOrders)
			admin.GET("/stats", h.dashboardStats)
		}
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{
		"error":   string(apperrors.KindOf(err)),
		"message": apperrors.MessageOf(err),
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Kayıt bilgileri eksik veya hatalı"))
		return
	}

	result, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, result)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("E-posta ve şifre gereklidir"))
		return
	}

	result, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (h *Handler) listAccounts(c *gin.Context) {
	filter := store.AccountFilter{
		Game:       c.Query("game"),
		Category:   c.Query("category"),
		Featured:   c.Query("featured") == "true",
		OnSale:     c.Query("on_sale") == "true",
		WeeklyDeal: c.Query("weekly_deal") == "true",
	}

	accounts, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, accounts)
}

func (h *Handler) getAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün numarası"))
		return
	}

	account, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, account)
}

func (h *Handler) listAccountReviews(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün numarası"))
		return
	}

	reviews, err := h.reviews.ListApproved(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, reviews)
}

func (h *Handler) checkoutCart(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Geçersiz sepet isteği"))
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	var buyerID *int64
	if id, ok := auth.UserIDFrom(c); ok {
		buyerID = &id
	}

	result, err := h.checkout.Checkout(c.Request.Context(), &req, buyerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (h *Handler) purchaseAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün numarası"))
		return
	}

	buyerID, ok := auth.UserIDFrom(c)
	if !ok {
		respondError(c, apperrors.Auth("Oturum açmanız gerekiyor"))
		return
	}

	result, err := h.checkout.PurchaseWithBalance(c.Request.Context(), buyerID, accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Satın alma tamamlandı",
		"data":    result,
	})
}

func (h *Handler) listMyOrders(c *gin.Context) {
	buyerID, ok := auth.UserIDFrom(c)
	if !ok {
		respondError(c, apperrors.Auth("Oturum açmanız gerekiyor"))
		return
	}

	orders, err := h.users.Orders(c.Request.Context(), strconv.FormatInt(buyerID, 10))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrderByNo(c.Request.Context(), c.Param("orderNo"))
	if err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	if order == nil {
		respondError(c, apperrors.NotFound("Sipariş bulunamadı"))
		return
	}

	buyerID, _ := auth.UserIDFrom(c)
	role, _ := c.Get(auth.ContextRole)
	if order.BuyerID != strconv.FormatInt(buyerID, 10) && role != models.RoleAdmin {
		respondError(c, apperrors.Forbidden("Bu siparişi görüntüleme yetkiniz yok"))
		return
	}
	respondData(c, http.StatusOK, order)
}

func (h *Handler) submitReview(c *gin.Context) {
	var req service.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Geçersiz değerlendirme isteği"))
		return
	}

	userID, ok := auth.UserIDFrom(c)
	if !ok {
		respondError(c, apperrors.Auth("Oturum açmanız gerekiyor"))
		return
	}

	review, err := h.reviews.Submit(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Değerlendirmeniz alındı, yönetici onayı bekliyor",
		"data":    review,
	})
}

func (h *Handler) createAccount(c *gin.Context) {
	var req service.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün bilgileri"))
		return
	}

	account, err := h.catalog.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, account)
}

func (h *Handler) updateAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün numarası"))
		return
	}

	var req service.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün bilgileri"))
		return
	}

	account, err := h.catalog.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, account)
}

func (h *Handler) deleteAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.Validation("Geçersiz ürün numarası"))
		return
	}

	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": id})
}

type moderateReviewRequest struct {
	ReviewID   int64 `json:"review_id" binding:"required"`
	IsApproved bool  `json:"is_approved"`
}

func (h *Handler) moderateReview(c *gin.Context) {
	var req moderateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("Geçersiz moderasyon isteği"))
		return
	}

	review, err := h.reviews.Moderate(c.Request.Context(), req.ReviewID, req.IsApproved)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, review)
}

func (h *Handler) refreshRatings(c *gin.Context) {
	recomputed, err := h.reviews.RecomputeAllRatings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"recomputed": recomputed})
}

func (h *Handler) listAllOrders(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), limit)
	if err != nil {
		respondError(c, apperrors.Internal(err))
		return
	}
	respondData(c, http.StatusOK, orders)
}

func (h *Handler) dashboardStats(c *gin.Context) {
	day := c.Query("day")
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}

	var sales, revenue int64
	if h.stats != nil {
		var err error
		sales, revenue, err = h.stats.GetDailySales(c.Request.Context(), day)
		if err != nil {
			respondError(c, apperrors.Internal(err))
			return
		}
	}
	respondData(c, http.StatusOK, gin.H{
		"day":     day,
		"sales":   sales,
		"revenue": revenue,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
