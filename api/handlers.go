package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"zeitprognose/models"
	"zeitprognose/regressor"
	"zeitprognose/scraper/applus"
	"zeitprognose/services"
	"zeitprognose/utils"
)

// Handler serves estimates over HTTP. model and orders may be nil.
type Handler struct {
	estimator *services.Estimator
	model     *regressor.Model
	history   int
	orders    applus.OrderSource
	logger    *utils.Logger
}

func NewHandler(estimator *services.Estimator, model *regressor.Model, historyProjects int, orders applus.OrderSource, logger *utils.Logger) *Handler {
	return &Handler{
		estimator: estimator,
		model:     model,
		history:   historyProjects,
		orders:    orders,
		logger:    logger,
	}
}

type systemView struct {
	Index       int           `json:"index"`
	DrawingTime float64       `json:"drawing_time"`
	BOMTime     float64       `json:"bom_time"`
	Source      models.Source `json:"source"`
	Provenance  string        `json:"provenance"`
}

type estimateView struct {
	DrawingTime float64      `json:"drawing_time"`
	BOMTime     float64      `json:"bom_time"`
	Provenance  string       `json:"provenance"`
	Systems     []systemView `json:"systems"`
}

func toView(est models.ProjectEstimate) estimateView {
	v := estimateView{
		DrawingTime: est.Times.Drawing,
		BOMTime:     est.Times.BOM,
		Provenance:  est.Provenance,
		Systems:     make([]systemView, 0, len(est.Systems)),
	}
	for _, r := range est.Systems {
		v.Systems = append(v.Systems, systemView{
			Index:       r.Index,
			DrawingTime: r.Times.Drawing,
			BOMTime:     r.Times.BOM,
			Source:      r.Source,
			Provenance:  r.Provenance,
		})
	}
	return v
}

type modelView struct {
	ID              string             `json:"id"`
	Kind            string             `json:"kind"`
	TrainedAt       time.Time          `json:"trained_at"`
	Examples        int                `json:"examples"`
	Columns         []string           `json:"columns"`
	Metrics         *regressor.Metrics `json:"metrics,omitempty"`
	HistoryProjects int                `json:"history_projects"`
}

type orderEstimateView struct {
	OrderNumber      string       `json:"order_number"`
	AssignedEmployee string       `json:"assigned_employee,omitempty"`
	Employee         string       `json:"employee,omitempty"`
	Estimate         estimateView `json:"estimate"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Model describes the loaded regressor.
func (h *Handler) Model(c *gin.Context) {
	if h.model == nil {
		RespondError(c, http.StatusServiceUnavailable, "model_unavailable", errors.New("no model loaded"))
		return
	}
	b := h.model.Bundle()
	RespondOK(c, modelView{
		ID:              b.ID,
		Kind:            string(b.Schema.Kind),
		TrainedAt:       b.TrainedAt,
		Examples:        b.Examples,
		Columns:         b.Schema.Columns,
		Metrics:         b.Metrics,
		HistoryProjects: h.history,
	})
}

// Estimate answers POST /v1/estimates. Per-system failures are reported in
// the body; the request itself only fails on malformed JSON.
func (h *Handler) Estimate(c *gin.Context) {
	var req models.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.Employee = strings.TrimSpace(req.Employee)
	RespondOK(c, toView(h.estimator.Estimate(c.Request.Context(), req)))
}

func (h *Handler) ListOrders(c *gin.Context) {
	if h.orders == nil {
		RespondError(c, http.StatusServiceUnavailable, "orders_unavailable", errors.New("no order source configured"))
		return
	}
	orders, err := h.orders.Orders(c.Request.Context())
	if err != nil {
		h.logger.Error("[api] listing orders: %v", err)
		RespondError(c, http.StatusBadGateway, "order_source_failed", err)
		return
	}
	RespondOK(c, gin.H{"orders": orders})
}

// EstimateOrder resolves an order number and estimates its systems. The
// optional ?employee= query restricts the first lookup pass.
func (h *Handler) EstimateOrder(c *gin.Context) {
	if h.orders == nil {
		RespondError(c, http.StatusServiceUnavailable, "orders_unavailable", errors.New("no order source configured"))
		return
	}
	order, err := h.orders.Order(c.Request.Context(), c.Param("number"))
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		RespondError(c, http.StatusNotFound, "order_not_found", err)
		return
	case err != nil:
		h.logger.Error("[api] fetching order %s: %v", c.Param("number"), err)
		RespondError(c, http.StatusBadGateway, "order_source_failed", err)
		return
	}

	employee := strings.TrimSpace(c.Query("employee"))
	est := h.estimator.Estimate(c.Request.Context(), models.EstimateRequest{
		Systems:  order.Systems,
		Employee: employee,
	})
	RespondOK(c, orderEstimateView{
		OrderNumber:      order.Number,
		AssignedEmployee: order.AssignedEmployee,
		Employee:         employee,
		Estimate:         toView(est),
	})
}
