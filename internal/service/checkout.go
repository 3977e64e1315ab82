package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/tmercier/ecopanier-system/internal/model"
	"github.com/tmercier/ecopanier-system/internal/repository"
)

// ErrUnauthenticated возвращается, если заказ оформляет несуществующий пользователь.
var (
	ErrUnauthenticated = errors.New("user is not authenticated")
	// ErrInvalidQuantity возвращается, если количество вне диапазона [1, остаток].
	ErrInvalidQuantity = errors.New("quantity must be between 1 and basket stock")
	// ErrInvalidPickupMethod возвращается при неизвестном способе получения.
	ErrInvalidPickupMethod = errors.New("unknown pickup method")
)

// Шаги саги после якорной записи заказа.
const (
	StepPoints     = "points"
	StepBadge      = "badge"
	StepChallenges = "challenges"
)

// firstOrderBadgeName — стабильный ключ бейджа за первый заказ.
const firstOrderBadgeName = "Premier Pas"

// StepError означает, что заказ создан, но один из последующих шагов начисления
// не выполнился после повторных попыток. Заказ не откатывается: все эффекты
// идемпотентны по OrderID и могут быть доприменены при сверке.
type StepError struct {
	Step    string
	OrderID uuid.UUID
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("order %s: step %s failed: %v", e.OrderID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PlaceOrder оформляет покупку панье: создаёт заказ, начисляет баллы,
// выдаёт бейдж за первый заказ и продвигает прогресс активных челленджей.
//
// До якорной записи заказа не выполняется ни одной записи: ошибки валидации
// полностью безопасны для повтора. После якорной записи каждый эффект
// идемпотентен по идентификатору заказа и повторяется при временных сбоях.
func (s *Service) PlaceOrder(ctx context.Context, userID, basketID uuid.UUID, quantity int, pickup model.PickupMethod) (*model.Receipt, error) {
	if _, err := s.repo.GetProfileByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	basket, err := s.repo.GetBasketByID(ctx, basketID)
	if err != nil {
		return nil, err
	}

	if quantity < 1 || quantity > basket.Stock {
		return nil, ErrInvalidQuantity
	}
	if !pickup.IsValid() {
		return nil, ErrInvalidPickupMethod
	}

	// Производные значения считаются один раз, до любой записи.
	// Баллы: 10 за каждый евро, с усечением — в центах это totalCents/10.
	totalCents := basket.DiscountedPriceCents * int64(quantity)
	co2Grams := basket.CO2SavedGrams * int64(quantity)
	foodGrams := basket.FoodSavedGrams * int64(quantity)
	pointsEarned := totalCents / 10

	priorOrders, err := s.repo.CountConfirmedOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count prior orders: %w", err)
	}

	orderID, err := s.repo.CreateOrder(ctx, model.Order{
		UserID:          userID,
		BasketID:        basketID,
		Quantity:        quantity,
		TotalPriceCents: totalCents,
		Status:          model.OrderStatusConfirmed,
		PickupMethod:    pickup,
		PointsEarned:    pointsEarned,
		CO2SavedGrams:   co2Grams,
		FoodSavedGrams:  foodGrams,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Заказ записан: сага доводится до конца даже при отмене запроса,
	// иначе останется заказ без баллов и прогресса.
	sagaCtx := context.WithoutCancel(ctx)

	if err := s.runSagaStep(sagaCtx, func(ctx context.Context) error {
		return s.repo.CreditOrderPoints(ctx, orderID)
	}); err != nil {
		return nil, &StepError{Step: StepPoints, OrderID: orderID, Err: err}
	}

	if priorOrders == 0 {
		if err := s.awardFirstOrderBadge(sagaCtx, userID); err != nil {
			return nil, &StepError{Step: StepBadge, OrderID: orderID, Err: err}
		}
	}

	if err := s.runSagaStep(sagaCtx, func(ctx context.Context) error {
		return s.repo.ApplyChallengeProgress(ctx, orderID)
	}); err != nil {
		return nil, &StepError{Step: StepChallenges, OrderID: orderID, Err: err}
	}

	return &model.Receipt{OrderID: orderID, PointsEarned: pointsEarned}, nil
}

// runSagaStep выполняет шаг саги с повторами при временных сбоях хранилища.
func (s *Service) runSagaStep(ctx context.Context, step func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := step(ctx)
		if err != nil && repository.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *Service) awardFirstOrderBadge(ctx context.Context, userID uuid.UUID) error {
	badge, err := s.repo.GetBadgeByName(ctx, firstOrderBadgeName)
	if err != nil {
		// Отсутствие определения бейджа не ошибка оформления заказа.
		if errors.Is(err, repository.ErrBadgeNotFound) {
			return nil
		}
		return fmt.Errorf("lookup badge: %w", err)
	}

	return s.runSagaStep(ctx, func(ctx context.Context) error {
		_, err := s.repo.AwardBadge(ctx, userID, badge.ID)
		return err
	})
}
