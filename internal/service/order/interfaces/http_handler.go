package interfaces

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
)

const serviceName = "order-service"

// OrderHandler 封装了 order 服务的 HTTP 处理器。
type OrderHandler struct {
	service *application.OrderAdmissionService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例。
func NewOrderHandler(service *application.OrderAdmissionService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/orders", h.handleCreateOrder)
	mux.HandleFunc("/orders/", h.handleGetOrder)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "http.CreateOrder")
	defer span.End()

	var req application.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// 数量必须为正整数，这是准入核心假定上游已经保证的约束
	if len(req.Items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, domain.ErrEmptyOrder.Error(), nil)
		return
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "every item needs a product_id and a positive quantity", nil)
			return
		}
	}

	start := time.Now()
	order, err := h.service.AdmitOrder(ctx, &req)
	admissionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		h.writeAdmissionError(w, err)
		return
	}

	admissionsTotal.WithLabelValues("admitted").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(application.NewOrderView(order))
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	id := strings.TrimPrefix(r.URL.Path, "/orders/")
	if id == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(application.NewOrderView(order))
}

// writeAdmissionError 把准入错误映射为 HTTP 状态码和结构化载荷，
// 调用方可以按错误类型分支，而不是解析格式化字符串。
func (h *OrderHandler) writeAdmissionError(w http.ResponseWriter, err error) {
	var notFound *domain.ProductsNotFoundError
	var insufficient *domain.InsufficientStockError
	var commitFailure *domain.ReservationCommitError

	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		admissionsTotal.WithLabelValues("customer_not_found").Inc()
		writeError(w, http.StatusNotFound, err.Error(), nil)

	case errors.Is(err, domain.ErrNoProductsFound):
		admissionsTotal.WithLabelValues("no_products_found").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	case errors.Is(err, domain.ErrEmptyOrder):
		admissionsTotal.WithLabelValues("empty_order").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	case errors.As(err, &notFound):
		admissionsTotal.WithLabelValues("products_not_found").Inc()
		writeError(w, http.StatusNotFound, notFound.Error(), map[string]interface{}{
			"missing_product_ids": notFound.Missing,
		})

	case errors.As(err, &insufficient):
		admissionsTotal.WithLabelValues("insufficient_stock").Inc()
		shortages := make([]map[string]interface{}, 0, len(insufficient.Shortages))
		for _, s := range insufficient.Shortages {
			shortages = append(shortages, map[string]interface{}{
				"product_id": s.ProductID,
				"available":  s.Available,
			})
		}
		writeError(w, http.StatusConflict, insufficient.Error(), map[string]interface{}{
			"shortages": shortages,
		})

	case errors.As(err, &commitFailure):
		// 一致性缺口：比普通校验失败严重得多，必须能在日志和告警里区分出来
		admissionsTotal.WithLabelValues("reservation_commit_failure").Inc()
		logger.Logger().Error().Err(err).Str("order_id", commitFailure.OrderID).
			Msg("CRITICAL: reservation commit failure surfaced to client")
		writeError(w, http.StatusInternalServerError, commitFailure.Error(), map[string]interface{}{
			"order_id": commitFailure.OrderID,
		})

	default:
		admissionsTotal.WithLabelValues("internal_error").Inc()
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	body := map[string]interface{}{"error": message}
	for k, v := range details {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
