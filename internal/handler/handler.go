// Package handler содержит HTTP-обработчики API сервиса EcoPanier.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmercier/ecopanier-system/internal/middleware"
	"github.com/tmercier/ecopanier-system/internal/model"
	"github.com/tmercier/ecopanier-system/internal/repository"
	"github.com/tmercier/ecopanier-system/internal/service"
	"github.com/tmercier/ecopanier-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterStudent(ctx context.Context, in service.RegisterInput) (*model.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*model.Profile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	ListBaskets(ctx context.Context, category model.BasketCategory) ([]model.Basket, error)
	PlaceOrder(ctx context.Context, userID, basketID uuid.UUID, quantity int, pickup model.PickupMethod) (*model.Receipt, error)
	GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	GetBadgeBoard(ctx context.Context, userID uuid.UUID) (*service.BadgeBoard, error)
	GetChallengeBoard(ctx context.Context, userID uuid.UUID) (*service.ChallengeBoard, error)
	GetImpact(ctx context.Context, userID uuid.UUID) (*model.Impact, error)
	ListAllBaskets(ctx context.Context) ([]model.Basket, error)
	CreateBasket(ctx context.Context, b model.Basket) (uuid.UUID, error)
	ListOrderDetails(ctx context.Context) ([]model.OrderDetails, error)
	ListStudents(ctx context.Context) ([]model.Profile, error)
	GetAdminStats(ctx context.Context) (*model.AdminStats, error)
}

// Handler реализует HTTP-обработчики API сервиса EcoPanier.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validatorv10.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validation.New(),
	}
}

func centsToEuros(cents int64) float64 {
	return float64(cents) / 100
}

func gramsToKg(grams int64) float64 {
	return float64(grams) / 1000
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type profileResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	University    string `json:"university,omitempty"`
	Phone         string `json:"phone,omitempty"`
	StudentStatus bool   `json:"student_status"`
	Points        int64  `json:"points"`
	Level         int    `json:"level"`
	Premium       bool   `json:"premium"`
	IsAdmin       bool   `json:"is_admin"`
	CreatedAt     string `json:"created_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:            p.ID.String(),
		Email:         p.Email,
		FullName:      p.FullName,
		University:    p.University,
		Phone:         p.Phone,
		StudentStatus: p.StudentStatus,
		Points:        p.Points,
		Level:         p.Level,
		Premium:       p.Premium,
		IsAdmin:       p.IsAdmin,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
}

type authResponse struct {
	Token   string          `json:"token"`
	Profile profileResponse `json:"profile"`
}

// Register обрабатывает регистрацию нового студента.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	profile, err := h.service.RegisterStudent(r.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		University: req.University,
		Phone:      req.Phone,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.authMiddleware.IssueToken(profile.ID, profile.IsAdmin)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, Profile: toProfileResponse(profile)})
}

// Login выполняет аутентификацию пользователя и выпуск токена.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	profile, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, err := h.authMiddleware.IssueToken(profile.ID, profile.IsAdmin)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, Profile: toProfileResponse(profile)})
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("get profile error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

type basketResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	Stock           int     `json:"stock"`
	StoreName       string  `json:"store_name"`
	StoreLocation   string  `json:"store_location"`
	AvailableUntil  string  `json:"available_until"`
	CO2Saved        float64 `json:"co2_saved"`
	FoodSaved       float64 `json:"food_saved"`
	CreatedAt       string  `json:"created_at"`
}

func toBasketResponse(b model.Basket) basketResponse {
	return basketResponse{
		ID:              b.ID.String(),
		Title:           b.Title,
		Description:     b.Description,
		Category:        string(b.Category),
		OriginalPrice:   centsToEuros(b.OriginalPriceCents),
		DiscountedPrice: centsToEuros(b.DiscountedPriceCents),
		Stock:           b.Stock,
		StoreName:       b.StoreName,
		StoreLocation:   b.StoreLocation,
		AvailableUntil:  b.AvailableUntil.Format(time.RFC3339),
		CO2Saved:        gramsToKg(b.CO2SavedGrams),
		FoodSaved:       gramsToKg(b.FoodSavedGrams),
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
	}
}

// GetBaskets возвращает доступные панье, опционально по категории.
func (h *Handler) GetBaskets(w http.ResponseWriter, r *http.Request) {
	category := model.BasketCategory(r.URL.Query().Get("category"))
	if category != "" && !category.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	baskets, err := h.service.ListBaskets(r.Context(), category)
	if err != nil {
		h.logger.Error("list baskets error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]basketResponse, 0, len(baskets))
	for _, b := range baskets {
		resp = append(resp, toBasketResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

type receiptResponse struct {
	OrderID      string `json:"order_id"`
	PointsEarned int64  `json:"points_earned"`
}

// PlaceOrder оформляет заказ панье для текущего пользователя.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req validation.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	basketID, err := uuid.Parse(req.BasketID)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	receipt, err := h.service.PlaceOrder(r.Context(), userID, basketID, req.Quantity, model.PickupMethod(req.PickupMethod))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthenticated):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, repository.ErrBasketNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidQuantity):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, service.ErrInvalidPickupMethod):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			// Состоявшийся заказ с недоначисленными эффектами логируется
			// с идентификаторами для сверки; пользователю — общий отказ.
			var stepErr *service.StepError
			if errors.As(err, &stepErr) {
				h.logger.Error("order saga step failed",
					zap.String("step", stepErr.Step),
					zap.String("orderID", stepErr.OrderID.String()),
					zap.Error(stepErr.Err),
				)
			} else {
				h.logger.Error("place order error", zap.Error(err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, receiptResponse{
		OrderID:      receipt.OrderID.String(),
		PointsEarned: receipt.PointsEarned,
	})
}

type orderResponse struct {
	ID           string  `json:"id"`
	BasketID     string  `json:"basket_id"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"total_price"`
	Status       string  `json:"status"`
	PickupMethod string  `json:"pickup_method"`
	PointsEarned int64   `json:"points_earned"`
	CO2Saved     float64 `json:"co2_saved"`
	FoodSaved    float64 `json:"food_saved"`
	CreatedAt    string  `json:"created_at"`
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID.String(),
		BasketID:     o.BasketID.String(),
		Quantity:     o.Quantity,
		TotalPrice:   centsToEuros(o.TotalPriceCents),
		Status:       string(o.Status),
		PickupMethod: string(o.PickupMethod),
		PointsEarned: o.PointsEarned,
		CO2Saved:     gramsToKg(o.CO2SavedGrams),
		FoodSaved:    gramsToKg(o.FoodSavedGrams),
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.String("userID", userID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, resp)
}

type badgeResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	PointsReward int64  `json:"points_reward"`
	Earned       bool   `json:"earned"`
}

// GetBadges возвращает все бейджи с отметками о получении текущим пользователем.
func (h *Handler) GetBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	board, err := h.service.GetBadgeBoard(r.Context(), userID)
	if err != nil {
		h.logger.Error("get badges error", zap.Error(err), zap.String("userID", userID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	earned := make(map[uuid.UUID]bool, len(board.Earned))
	for _, id := range board.Earned {
		earned[id] = true
	}

	resp := make([]badgeResponse, 0, len(board.Badges))
	for _, b := range board.Badges {
		resp = append(resp, badgeResponse{
			ID:           b.ID.String(),
			Name:         b.Name,
			Description:  b.Description,
			Icon:         b.Icon,
			PointsReward: b.PointsReward,
			Earned:       earned[b.ID],
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type challengeResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	GoalValue    int     `json:"goal_value"`
	PointsReward int64   `json:"points_reward"`
	EndDate      string  `json:"end_date"`
	Progress     int     `json:"progress"`
	Completed    bool    `json:"completed"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

// GetChallenges возвращает активные челленджи с прогрессом текущего пользователя.
func (h *Handler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	board, err := h.service.GetChallengeBoard(r.Context(), userID)
	if err != nil {
		h.logger.Error("get challenges error", zap.Error(err), zap.String("userID", userID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	progressByID := make(map[uuid.UUID]model.UserChallenge, len(board.Progress))
	for _, uc := range board.Progress {
		progressByID[uc.ChallengeID] = uc
	}

	resp := make([]challengeResponse, 0, len(board.Challenges))
	for _, c := range board.Challenges {
		cr := challengeResponse{
			ID:           c.ID.String(),
			Title:        c.Title,
			Description:  c.Description,
			GoalValue:    c.GoalValue,
			PointsReward: c.PointsReward,
			EndDate:      c.EndDate.Format(time.RFC3339),
		}
		if uc, ok := progressByID[c.ID]; ok {
			cr.Progress = uc.Progress
			cr.Completed = uc.Completed
			if uc.CompletedAt != nil {
				completedAt := uc.CompletedAt.Format(time.RFC3339)
				cr.CompletedAt = &completedAt
			}
		}
		resp = append(resp, cr)
	}

	writeJSON(w, http.StatusOK, resp)
}

type impactResponse struct {
	OrdersCount  int     `json:"orders_count"`
	TotalSpent   float64 `json:"total_spent"`
	CO2Saved     float64 `json:"co2_saved"`
	FoodSaved    float64 `json:"food_saved"`
	BadgesEarned int     `json:"badges_earned"`
	BadgesTotal  int     `json:"badges_total"`
}

// GetImpact возвращает экологическую статистику текущего пользователя.
func (h *Handler) GetImpact(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	impact, err := h.service.GetImpact(r.Context(), userID)
	if err != nil {
		h.logger.Error("get impact error", zap.Error(err), zap.String("userID", userID.String()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, impactResponse{
		OrdersCount:  impact.OrdersCount,
		TotalSpent:   centsToEuros(impact.TotalSpentCents),
		CO2Saved:     gramsToKg(impact.CO2SavedGrams),
		FoodSaved:    gramsToKg(impact.FoodSavedGrams),
		BadgesEarned: impact.BadgesEarned,
		BadgesTotal:  impact.BadgesTotal,
	})
}
