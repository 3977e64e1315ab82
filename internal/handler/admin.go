package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tmercier/ecopanier-system/internal/model"
	"github.com/tmercier/ecopanier-system/internal/service"
	"github.com/tmercier/ecopanier-system/internal/validation"
)

// AdminGetBaskets возвращает все панье, включая распроданные.
func (h *Handler) AdminGetBaskets(w http.ResponseWriter, r *http.Request) {
	baskets, err := h.service.ListAllBaskets(r.Context())
	if err != nil {
		h.logger.Error("admin list baskets error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]basketResponse, 0, len(baskets))
	for _, b := range baskets {
		resp = append(resp, toBasketResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

func eurosToCents(euros float64) int64 {
	return int64(math.Round(euros * 100))
}

func kgToGrams(kg float64) int64 {
	return int64(math.Round(kg * 1000))
}

// AdminCreateBasket создаёт новое панье.
func (h *Handler) AdminCreateBasket(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateBasketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var availableUntil time.Time
	if req.AvailableUntil != "" {
		parsed, err := time.Parse(time.RFC3339, req.AvailableUntil)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		availableUntil = parsed
	}

	id, err := h.service.CreateBasket(r.Context(), model.Basket{
		Title:                req.Title,
		Description:          req.Description,
		Category:             model.BasketCategory(req.Category),
		OriginalPriceCents:   eurosToCents(req.OriginalPrice),
		DiscountedPriceCents: eurosToCents(req.DiscountedPrice),
		Stock:                req.Stock,
		StoreName:            req.StoreName,
		StoreLocation:        req.StoreLocation,
		AvailableUntil:       availableUntil,
		CO2SavedGrams:        kgToGrams(req.CO2Saved),
		FoodSavedGrams:       kgToGrams(req.FoodSaved),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidBasket) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("admin create basket error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

type orderDetailsResponse struct {
	orderResponse
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	BasketTitle  string `json:"basket_title"`
}

// AdminGetOrders возвращает все заказы с данными студентов и панье.
func (h *Handler) AdminGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrderDetails(r.Context())
	if err != nil {
		h.logger.Error("admin list orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderDetailsResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderDetailsResponse{
			orderResponse: toOrderResponse(o.Order),
			StudentName:   o.StudentName,
			StudentEmail:  o.StudentEmail,
			BasketTitle:   o.BasketTitle,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminGetStudents возвращает профили всех студентов.
func (h *Handler) AdminGetStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.logger.Error("admin list students error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]profileResponse, 0, len(students))
	for _, p := range students {
		resp = append(resp, toProfileResponse(&p))
	}

	writeJSON(w, http.StatusOK, resp)
}

type adminStatsResponse struct {
	TotalRevenue   float64        `json:"total_revenue"`
	FoodSaved      float64        `json:"food_saved"`
	CO2Saved       float64        `json:"co2_saved"`
	TotalStock     int            `json:"total_stock"`
	TotalOrders    int            `json:"total_orders"`
	OrdersByStatus map[string]int `json:"orders_by_status"`
	StudentsCount  int            `json:"students_count"`
	AverageOrder   float64        `json:"average_order"`
}

// AdminGetStats возвращает сводную статистику магазина.
func (h *Handler) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetAdminStats(r.Context())
	if err != nil {
		h.logger.Error("admin stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	byStatus := make(map[string]int, len(stats.OrdersByStatus))
	for status, count := range stats.OrdersByStatus {
		byStatus[string(status)] = count
	}

	writeJSON(w, http.StatusOK, adminStatsResponse{
		TotalRevenue:   centsToEuros(stats.TotalRevenueCents),
		FoodSaved:      gramsToKg(stats.FoodSavedGrams),
		CO2Saved:       gramsToKg(stats.CO2SavedGrams),
		TotalStock:     stats.TotalStock,
		TotalOrders:    stats.TotalOrders,
		OrdersByStatus: byStatus,
		StudentsCount:  stats.StudentsCount,
		AverageOrder:   centsToEuros(stats.AverageOrderCents),
	})
}
