// Package service реализует бизнес-логику сервиса EcoPanier.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tmercier/ecopanier-system/internal/model"
	"github.com/tmercier/ecopanier-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateProfile(ctx context.Context, p model.Profile) (uuid.UUID, error)
	EnsureAdminProfile(ctx context.Context, email string, passwordHash []byte, fullName string) error
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	ListStudents(ctx context.Context) ([]model.Profile, error)

	ListAvailableBaskets(ctx context.Context, category model.BasketCategory) ([]model.Basket, error)
	ListAllBaskets(ctx context.Context) ([]model.Basket, error)
	GetBasketByID(ctx context.Context, id uuid.UUID) (*model.Basket, error)
	CreateBasket(ctx context.Context, b model.Basket) (uuid.UUID, error)

	CreateOrder(ctx context.Context, o model.Order) (uuid.UUID, error)
	CountConfirmedOrders(ctx context.Context, userID uuid.UUID) (int, error)
	GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListOrderDetails(ctx context.Context) ([]model.OrderDetails, error)
	CreditOrderPoints(ctx context.Context, orderID uuid.UUID) error

	GetBadgeByName(ctx context.Context, name string) (*model.Badge, error)
	ListBadges(ctx context.Context) ([]model.Badge, error)
	GetUserBadgeIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AwardBadge(ctx context.Context, userID, badgeID uuid.UUID) (bool, error)

	ListActiveChallenges(ctx context.Context) ([]model.Challenge, error)
	GetUserChallenges(ctx context.Context, userID uuid.UUID) ([]model.UserChallenge, error)
	ApplyChallengeProgress(ctx context.Context, orderID uuid.UUID) error
	DeactivateExpiredChallenges(ctx context.Context) (int64, error)
}

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidBasket возвращается при попытке создать панье с нарушением инвариантов.
var ErrInvalidBasket = errors.New("invalid basket")

const (
	adminEmail    = "admin@ecopanier.fr"
	adminFullName = "Administrateur EcoPanier"
)

// Service содержит бизнес-логику сервиса EcoPanier.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterInput содержит данные регистрации нового студента.
type RegisterInput struct {
	Email      string
	Password   string
	FullName   string
	University string
	Phone      string
}

// RegisterStudent регистрирует нового студента и возвращает его профиль.
func (s *Service) RegisterStudent(ctx context.Context, in RegisterInput) (*model.Profile, error) {
	hashed := hashPassword(in.Email, in.Password)
	id, err := s.repo.CreateProfile(ctx, model.Profile{
		Email:         in.Email,
		PasswordHash:  hashed,
		FullName:      in.FullName,
		University:    in.University,
		Phone:         in.Phone,
		StudentStatus: true,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetProfileByID(ctx, id)
}

// Authenticate проверяет email и пароль пользователя и возвращает его профиль.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.Profile, error) {
	p, err := s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(p.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return p, nil
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// EnsureAdminAccount создаёт служебный профиль администратора, если его нет.
func (s *Service) EnsureAdminAccount(ctx context.Context, password string) error {
	if password == "" {
		return nil
	}
	return s.repo.EnsureAdminProfile(ctx, adminEmail, hashPassword(adminEmail, password), adminFullName)
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	return s.repo.GetProfileByID(ctx, userID)
}

// ListBaskets возвращает доступные панье, опционально отфильтрованные по категории.
func (s *Service) ListBaskets(ctx context.Context, category model.BasketCategory) ([]model.Basket, error) {
	if category != "" && !category.IsValid() {
		return nil, nil
	}
	return s.repo.ListAvailableBaskets(ctx, category)
}

// GetOrdersByUser возвращает заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// BadgeBoard содержит все определения бейджей и идентификаторы полученных.
type BadgeBoard struct {
	Badges []model.Badge
	Earned []uuid.UUID
}

// GetBadgeBoard возвращает бейджи и отметки о получении для пользователя.
func (s *Service) GetBadgeBoard(ctx context.Context, userID uuid.UUID) (*BadgeBoard, error) {
	badges, err := s.repo.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	earned, err := s.repo.GetUserBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BadgeBoard{Badges: badges, Earned: earned}, nil
}

// ChallengeBoard содержит активные челленджи и прогресс пользователя по ним.
type ChallengeBoard struct {
	Challenges []model.Challenge
	Progress   []model.UserChallenge
}

// GetChallengeBoard возвращает активные челленджи с прогрессом пользователя.
func (s *Service) GetChallengeBoard(ctx context.Context, userID uuid.UUID) (*ChallengeBoard, error) {
	challenges, err := s.repo.ListActiveChallenges(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.GetUserChallenges(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ChallengeBoard{Challenges: challenges, Progress: progress}, nil
}

// GetImpact возвращает агрегированную экологическую статистику пользователя.
func (s *Service) GetImpact(ctx context.Context, userID uuid.UUID) (*model.Impact, error) {
	orders, err := s.repo.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := s.repo.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	earned, err := s.repo.GetUserBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	impact := &model.Impact{
		OrdersCount:  len(orders),
		BadgesEarned: len(earned),
		BadgesTotal:  len(badges),
	}
	for _, o := range orders {
		impact.TotalSpentCents += o.TotalPriceCents
		impact.CO2SavedGrams += o.CO2SavedGrams
		impact.FoodSavedGrams += o.FoodSavedGrams
	}

	return impact, nil
}

// CreateBasket создаёт новое панье от имени администратора.
func (s *Service) CreateBasket(ctx context.Context, b model.Basket) (uuid.UUID, error) {
	if b.Title == "" || !b.Category.IsValid() {
		return uuid.Nil, ErrInvalidBasket
	}
	if b.DiscountedPriceCents < 0 || b.DiscountedPriceCents > b.OriginalPriceCents {
		return uuid.Nil, ErrInvalidBasket
	}
	if b.Stock < 0 {
		return uuid.Nil, ErrInvalidBasket
	}
	if b.AvailableUntil.IsZero() {
		b.AvailableUntil = time.Now().Add(7 * 24 * time.Hour)
	}
	return s.repo.CreateBasket(ctx, b)
}

// ListAllBaskets возвращает все панье для админ-панели.
func (s *Service) ListAllBaskets(ctx context.Context) ([]model.Basket, error) {
	return s.repo.ListAllBaskets(ctx)
}

// ListOrderDetails возвращает все заказы с данными студентов для админ-панели.
func (s *Service) ListOrderDetails(ctx context.Context) ([]model.OrderDetails, error) {
	return s.repo.ListOrderDetails(ctx)
}

// ListStudents возвращает профили студентов для админ-панели.
func (s *Service) ListStudents(ctx context.Context) ([]model.Profile, error) {
	return s.repo.ListStudents(ctx)
}

// GetAdminStats собирает сводную статистику для админ-панели.
func (s *Service) GetAdminStats(ctx context.Context) (*model.AdminStats, error) {
	orders, err := s.repo.ListOrderDetails(ctx)
	if err != nil {
		return nil, err
	}
	baskets, err := s.repo.ListAllBaskets(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.AdminStats{
		TotalOrders:    len(orders),
		StudentsCount:  len(students),
		OrdersByStatus: make(map[model.OrderStatus]int),
	}
	for _, o := range orders {
		stats.TotalRevenueCents += o.TotalPriceCents
		stats.FoodSavedGrams += o.FoodSavedGrams
		stats.CO2SavedGrams += o.CO2SavedGrams
		stats.OrdersByStatus[o.Status]++
	}
	for _, b := range baskets {
		stats.TotalStock += b.Stock
	}
	if len(orders) > 0 {
		stats.AverageOrderCents = stats.TotalRevenueCents / int64(len(orders))
	}

	return stats, nil
}

// StartChallengeSweeper запускает фоновый процесс деактивации челленджей
// с истёкшим сроком.
func (s *Service) StartChallengeSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.repo.DeactivateExpiredChallenges(ctx)
			}
		}
	}()
}
