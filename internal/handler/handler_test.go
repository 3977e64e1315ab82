package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmercier/ecopanier-system/internal/middleware"
	"github.com/tmercier/ecopanier-system/internal/model"
	"github.com/tmercier/ecopanier-system/internal/repository"
	"github.com/tmercier/ecopanier-system/internal/service"
	"github.com/tmercier/ecopanier-system/internal/validation"
)

type stubService struct {
	registerProfile *model.Profile
	registerErr     error

	authProfile *model.Profile
	authErr     error

	profileResp *model.Profile
	profileErr  error

	basketsResp []model.Basket
	basketsErr  error

	receiptResp *model.Receipt
	placeErr    error

	ordersResp []model.Order
	ordersErr  error

	badgeBoard    *service.BadgeBoard
	badgeBoardErr error

	challengeBoard    *service.ChallengeBoard
	challengeBoardErr error

	impactResp *model.Impact
	impactErr  error

	allBasketsResp []model.Basket
	allBasketsErr  error

	createBasketID  uuid.UUID
	createBasketErr error

	orderDetailsResp []model.OrderDetails
	orderDetailsErr  error

	studentsResp []model.Profile
	studentsErr  error

	statsResp *model.AdminStats
	statsErr  error
}

func (s *stubService) RegisterStudent(ctx context.Context, in service.RegisterInput) (*model.Profile, error) {
	return s.registerProfile, s.registerErr
}

func (s *stubService) Authenticate(ctx context.Context, email, password string) (*model.Profile, error) {
	return s.authProfile, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	return s.profileResp, s.profileErr
}

func (s *stubService) ListBaskets(ctx context.Context, category model.BasketCategory) ([]model.Basket, error) {
	return s.basketsResp, s.basketsErr
}

func (s *stubService) PlaceOrder(ctx context.Context, userID, basketID uuid.UUID, quantity int, pickup model.PickupMethod) (*model.Receipt, error) {
	return s.receiptResp, s.placeErr
}

func (s *stubService) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) GetBadgeBoard(ctx context.Context, userID uuid.UUID) (*service.BadgeBoard, error) {
	return s.badgeBoard, s.badgeBoardErr
}

func (s *stubService) GetChallengeBoard(ctx context.Context, userID uuid.UUID) (*service.ChallengeBoard, error) {
	return s.challengeBoard, s.challengeBoardErr
}

func (s *stubService) GetImpact(ctx context.Context, userID uuid.UUID) (*model.Impact, error) {
	return s.impactResp, s.impactErr
}

func (s *stubService) ListAllBaskets(ctx context.Context) ([]model.Basket, error) {
	return s.allBasketsResp, s.allBasketsErr
}

func (s *stubService) CreateBasket(ctx context.Context, b model.Basket) (uuid.UUID, error) {
	return s.createBasketID, s.createBasketErr
}

func (s *stubService) ListOrderDetails(ctx context.Context) ([]model.OrderDetails, error) {
	return s.orderDetailsResp, s.orderDetailsErr
}

func (s *stubService) ListStudents(ctx context.Context) ([]model.Profile, error) {
	return s.studentsResp, s.studentsErr
}

func (s *stubService) GetAdminStats(ctx context.Context) (*model.AdminStats, error) {
	return s.statsResp, s.statsErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authedRequest(t *testing.T, h *Handler, method, target string, body []byte) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	token, err := h.authMiddleware.IssueToken(uuid.New(), false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return req
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerProfile: &model.Profile{ID: uuid.New(), Email: "alice@univ.fr", FullName: "Alice Martin"},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(validation.RegisterRequest{
		Email:    "alice@univ.fr",
		Password: "secret1",
		FullName: "Alice Martin",
		Phone:    "+33600000000",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp authResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("token must not be empty")
	}
	if resp.Profile.Email != "alice@univ.fr" {
		t.Fatalf("email = %q", resp.Profile.Email)
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrProfileExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(validation.RegisterRequest{
		Email:    "alice@univ.fr",
		Password: "secret1",
		FullName: "Alice Martin",
		Phone:    "+33600000000",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestRegister_InvalidPayload(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(validation.RegisterRequest{
		Email:    "not-an-email",
		Password: "secret1",
		FullName: "Alice Martin",
		Phone:    "+33600000000",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(validation.LoginRequest{
		Email:    "alice@univ.fr",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetBaskets_InvalidCategory(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/baskets?category=luxe", nil)
	rec := httptest.NewRecorder()

	h.GetBaskets(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestGetBaskets_ConvertsUnits(t *testing.T) {
	svc := &stubService{
		basketsResp: []model.Basket{
			{
				ID:                   uuid.New(),
				Title:                "Panier du soir",
				Category:             model.CategoryAlimentaire,
				OriginalPriceCents:   1500,
				DiscountedPriceCents: 500,
				CO2SavedGrams:        2500,
				FoodSavedGrams:       1500,
			},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/baskets", nil)
	rec := httptest.NewRecorder()

	h.GetBaskets(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []basketResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("baskets = %d, want 1", len(resp))
	}
	if resp[0].DiscountedPrice != 5.0 {
		t.Fatalf("discounted price = %v, want 5.0", resp[0].DiscountedPrice)
	}
	if resp[0].CO2Saved != 2.5 {
		t.Fatalf("co2 = %v, want 2.5", resp[0].CO2Saved)
	}
}

func TestPlaceOrder_Created(t *testing.T) {
	orderID := uuid.New()
	svc := &stubService{
		receiptResp: &model.Receipt{OrderID: orderID, PointsEarned: 150},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(validation.PlaceOrderRequest{
		BasketID:     uuid.New().String(),
		Quantity:     3,
		PickupMethod: "click_collect",
	})

	req := authedRequest(t, h, http.MethodPost, "/api/orders", body)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.PlaceOrder)).ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp receiptResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.OrderID != orderID.String() {
		t.Fatalf("order id = %q, want %q", resp.OrderID, orderID)
	}
	if resp.PointsEarned != 150 {
		t.Fatalf("points = %d, want 150", resp.PointsEarned)
	}
}

func TestPlaceOrder_NoToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(validation.PlaceOrderRequest{
		BasketID:     uuid.New().String(),
		Quantity:     1,
		PickupMethod: "delivery",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.PlaceOrder)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "basket not found", serviceErr: repository.ErrBasketNotFound, wantStatus: http.StatusNotFound},
		{name: "quantity out of range", serviceErr: service.ErrInvalidQuantity, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown pickup method", serviceErr: service.ErrInvalidPickupMethod, wantStatus: http.StatusBadRequest},
		{name: "saga step failed", serviceErr: &service.StepError{Step: service.StepPoints, OrderID: uuid.New(), Err: context.DeadlineExceeded}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{placeErr: tt.serviceErr})

			body, _ := json.Marshal(validation.PlaceOrderRequest{
				BasketID:     uuid.New().String(),
				Quantity:     1,
				PickupMethod: "click_collect",
			})

			req := authedRequest(t, h, http.MethodPost, "/api/orders", body)
			rec := httptest.NewRecorder()

			h.authMiddleware.Middleware(http.HandlerFunc(h.PlaceOrder)).ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestPlaceOrder_RejectsMalformedBasketID(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(validation.PlaceOrderRequest{
		BasketID:     "not-a-uuid",
		Quantity:     1,
		PickupMethod: "click_collect",
	})

	req := authedRequest(t, h, http.MethodPost, "/api/orders", body)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.PlaceOrder)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestGetOrders_NoContent(t *testing.T) {
	svc := &stubService{ordersResp: []model.Order{}}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodGet, "/api/user/orders", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.GetOrders)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestGetBadges_MarksEarned(t *testing.T) {
	earnedID := uuid.New()
	otherID := uuid.New()
	svc := &stubService{
		badgeBoard: &service.BadgeBoard{
			Badges: []model.Badge{
				{ID: earnedID, Name: "Premier Pas"},
				{ID: otherID, Name: "Éco-Héros"},
			},
			Earned: []uuid.UUID{earnedID},
		},
	}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodGet, "/api/user/badges", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.GetBadges)).ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []badgeResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("badges = %d, want 2", len(resp))
	}
	for _, b := range resp {
		want := b.ID == earnedID.String()
		if b.Earned != want {
			t.Fatalf("badge %s earned = %v, want %v", b.Name, b.Earned, want)
		}
	}
}

func TestGetImpact_JSONResponse(t *testing.T) {
	svc := &stubService{
		impactResp: &model.Impact{
			OrdersCount:     2,
			TotalSpentCents: 2000,
			CO2SavedGrams:   8000,
			FoodSavedGrams:  6000,
			BadgesEarned:    1,
			BadgesTotal:     3,
		},
	}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodGet, "/api/user/impact", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.GetImpact)).ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp impactResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalSpent != 20.0 {
		t.Fatalf("total spent = %v, want 20.0", resp.TotalSpent)
	}
	if resp.CO2Saved != 8.0 {
		t.Fatalf("co2 = %v, want 8.0", resp.CO2Saved)
	}
}
