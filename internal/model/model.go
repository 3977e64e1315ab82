// Package model содержит доменные сущности сервиса EcoPanier.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile представляет зарегистрированного студента или администратора.
type Profile struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  []byte
	FullName      string
	University    string
	Phone         string
	StudentStatus bool
	Points        int64
	Level         int
	Premium       bool
	IsAdmin       bool
	CreatedAt     time.Time
}

// BasketCategory описывает категорию панье с излишками.
type BasketCategory string

const (
	CategoryAlimentaire BasketCategory = "alimentaire"
	CategoryHygiene     BasketCategory = "hygiène"
	CategoryFournitures BasketCategory = "fournitures"
	CategoryMixte       BasketCategory = "mixte"
)

// IsValid сообщает, является ли значение известной категорией.
func (c BasketCategory) IsValid() bool {
	switch c {
	case CategoryAlimentaire, CategoryHygiene, CategoryFournitures, CategoryMixte:
		return true
	}
	return false
}

// Basket описывает панье невостребованных товаров, доступное к покупке.
// Денежные суммы хранятся в центах, вес — в граммах.
type Basket struct {
	ID                   uuid.UUID
	Title                string
	Description          string
	Category             BasketCategory
	OriginalPriceCents   int64
	DiscountedPriceCents int64
	Stock                int
	StoreName            string
	StoreLocation        string
	AvailableUntil       time.Time
	CO2SavedGrams        int64
	FoodSavedGrams       int64
	CreatedAt            time.Time
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PickupMethod описывает способ получения заказа.
type PickupMethod string

const (
	PickupClickCollect PickupMethod = "click_collect"
	PickupDelivery     PickupMethod = "delivery"
)

// IsValid сообщает, является ли значение известным способом получения.
func (m PickupMethod) IsValid() bool {
	return m == PickupClickCollect || m == PickupDelivery
}

// Order описывает одну покупку панье.
type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	BasketID        uuid.UUID
	Quantity        int
	TotalPriceCents int64
	Status          OrderStatus
	PickupMethod    PickupMethod
	PointsEarned    int64
	CO2SavedGrams   int64
	FoodSavedGrams  int64
	CreatedAt       time.Time
}

// OrderDetails дополняет заказ данными студента и панье для админ-панели.
type OrderDetails struct {
	Order
	StudentName  string
	StudentEmail string
	BasketTitle  string
}

// Receipt возвращается воркфлоу оформления заказа при успехе.
type Receipt struct {
	OrderID      uuid.UUID
	PointsEarned int64
}

// Badge описывает определение достижения программы лояльности.
type Badge struct {
	ID             uuid.UUID
	Name           string
	Description    string
	Icon           string
	ConditionType  string
	ConditionValue int
	PointsReward   int64
}

// UserBadge описывает факт получения бейджа пользователем.
type UserBadge struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	BadgeID  uuid.UUID
	EarnedAt time.Time
}

// Challenge описывает ограниченный по времени челлендж.
type Challenge struct {
	ID            uuid.UUID
	Title         string
	Description   string
	ChallengeType string
	GoalValue     int
	PointsReward  int64
	StartDate     time.Time
	EndDate       time.Time
	Active        bool
}

// UserChallenge описывает прогресс пользователя по челленджу.
type UserChallenge struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ChallengeID uuid.UUID
	Progress    int
	Completed   bool
	CompletedAt *time.Time
}

// Impact содержит агрегированную экологическую статистику пользователя.
type Impact struct {
	OrdersCount     int
	TotalSpentCents int64
	CO2SavedGrams   int64
	FoodSavedGrams  int64
	BadgesEarned    int
	BadgesTotal     int
}

// AdminStats содержит сводную статистику для админ-панели.
type AdminStats struct {
	TotalRevenueCents int64
	FoodSavedGrams    int64
	CO2SavedGrams     int64
	TotalStock        int
	TotalOrders       int
	OrdersByStatus    map[OrderStatus]int
	StudentsCount     int
	AverageOrderCents int64
}
