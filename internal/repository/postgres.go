// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/tmercier/ecopanier-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProfileExists возвращается при попытке создать профиль с уже существующим email.
var (
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound возвращается, если профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrBasketNotFound возвращается, если панье не найдено.
	ErrBasketNotFound = errors.New("basket not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrBadgeNotFound возвращается, если бейдж с указанным именем не определён.
	ErrBadgeNotFound = errors.New("badge not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// IsTransient сообщает, стоит ли повторить операцию после этой ошибки.
// Повторяются конфликты сериализации, дедлоки и сетевые сбои.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateProfile создаёт новый профиль студента.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p model.Profile) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO profiles (email, password_hash, full_name, university, phone, student_status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.Email, p.PasswordHash, p.FullName, p.University, p.Phone, p.StudentStatus,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrProfileExists, p.Email)
		}
		return uuid.Nil, fmt.Errorf("create profile: %w", err)
	}
	return id, nil
}

// EnsureAdminProfile создаёт служебный профиль администратора, если его ещё нет.
func (r *PostgresRepository) EnsureAdminProfile(ctx context.Context, email string, passwordHash []byte, fullName string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (email, password_hash, full_name, student_status, points, level, is_admin)
		 VALUES ($1, $2, $3, FALSE, 1000, 5, TRUE)
		 ON CONFLICT (email) DO UPDATE SET is_admin = TRUE`,
		email, passwordHash, fullName,
	)
	if err != nil {
		return fmt.Errorf("ensure admin profile: %w", err)
	}
	return nil
}

const profileColumns = `id, email, password_hash, full_name, university, phone, student_status, points, level, premium, is_admin, created_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.University, &p.Phone,
		&p.StudentStatus, &p.Points, &p.Level, &p.Premium, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

// GetProfileByEmail возвращает профиль по email.
func (r *PostgresRepository) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = $1`,
		email,
	)
	return scanProfile(row)
}

// GetProfileByID возвращает профиль по идентификатору.
func (r *PostgresRepository) GetProfileByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	)
	return scanProfile(row)
}

// ListStudents возвращает профили студентов (без администраторов) для админ-панели.
func (r *PostgresRepository) ListStudents(ctx context.Context) ([]model.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+`
		 FROM profiles
		 WHERE is_admin = FALSE
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select students: %w", err)
	}
	defer rows.Close()

	var res []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const basketColumns = `id, title, description, category, original_price_cents, discounted_price_cents, stock, store_name, store_location, available_until, co2_saved_grams, food_saved_grams, created_at`

func scanBaskets(rows pgx.Rows) ([]model.Basket, error) {
	defer rows.Close()

	var res []model.Basket
	for rows.Next() {
		var b model.Basket
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.Category, &b.OriginalPriceCents,
			&b.DiscountedPriceCents, &b.Stock, &b.StoreName, &b.StoreLocation, &b.AvailableUntil,
			&b.CO2SavedGrams, &b.FoodSavedGrams, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan basket: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListAvailableBaskets возвращает панье с ненулевым остатком, опционально по категории.
func (r *PostgresRepository) ListAvailableBaskets(ctx context.Context, category model.BasketCategory) ([]model.Basket, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" {
		rows, err = r.pool.Query(ctx,
			`SELECT `+basketColumns+`
			 FROM baskets
			 WHERE stock > 0
			 ORDER BY created_at DESC`,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+basketColumns+`
			 FROM baskets
			 WHERE stock > 0 AND category = $1
			 ORDER BY created_at DESC`,
			string(category),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("select baskets: %w", err)
	}
	return scanBaskets(rows)
}

// ListAllBaskets возвращает все панье, включая распроданные, для админ-панели.
func (r *PostgresRepository) ListAllBaskets(ctx context.Context) ([]model.Basket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+basketColumns+`
		 FROM baskets
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select baskets: %w", err)
	}
	return scanBaskets(rows)
}

// GetBasketByID возвращает панье по идентификатору.
func (r *PostgresRepository) GetBasketByID(ctx context.Context, id uuid.UUID) (*model.Basket, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+basketColumns+` FROM baskets WHERE id = $1`,
		id,
	)

	var b model.Basket
	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Category, &b.OriginalPriceCents,
		&b.DiscountedPriceCents, &b.Stock, &b.StoreName, &b.StoreLocation, &b.AvailableUntil,
		&b.CO2SavedGrams, &b.FoodSavedGrams, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBasketNotFound
		}
		return nil, fmt.Errorf("get basket: %w", err)
	}

	return &b, nil
}

// CreateBasket создаёт новое панье.
func (r *PostgresRepository) CreateBasket(ctx context.Context, b model.Basket) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO baskets (title, description, category, original_price_cents, discounted_price_cents,
		                      stock, store_name, store_location, available_until, co2_saved_grams, food_saved_grams)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		b.Title, b.Description, string(b.Category), b.OriginalPriceCents, b.DiscountedPriceCents,
		b.Stock, b.StoreName, b.StoreLocation, b.AvailableUntil, b.CO2SavedGrams, b.FoodSavedGrams,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create basket: %w", err)
	}
	return id, nil
}

// CreateOrder сохраняет заказ и возвращает его идентификатор.
// Списание остатка панье выполняет триггер; при нехватке остатка вставка
// завершается ошибкой ограничения stock >= 0.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (user_id, basket_id, quantity, total_price_cents, status, pickup_method,
		                     points_earned, co2_saved_grams, food_saved_grams)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		o.UserID, o.BasketID, o.Quantity, o.TotalPriceCents, string(o.Status), string(o.PickupMethod),
		o.PointsEarned, o.CO2SavedGrams, o.FoodSavedGrams,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

// CountConfirmedOrders возвращает число подтверждённых заказов пользователя.
func (r *PostgresRepository) CountConfirmedOrders(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status = $2`,
		userID, string(model.OrderStatusConfirmed),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

const orderColumns = `id, user_id, basket_id, quantity, total_price_cents, status, pickup_method, points_earned, co2_saved_grams, food_saved_grams, created_at`

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.BasketID, &o.Quantity, &o.TotalPriceCents,
			&o.Status, &o.PickupMethod, &o.PointsEarned, &o.CO2SavedGrams, &o.FoodSavedGrams,
			&o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListOrderDetails возвращает все заказы с данными студента и панье для админ-панели.
func (r *PostgresRepository) ListOrderDetails(ctx context.Context) ([]model.OrderDetails, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, o.basket_id, o.quantity, o.total_price_cents, o.status, o.pickup_method,
		        o.points_earned, o.co2_saved_grams, o.food_saved_grams, o.created_at,
		        p.full_name, p.email, b.title
		 FROM orders o
		 JOIN profiles p ON p.id = o.user_id
		 JOIN baskets b ON b.id = o.basket_id
		 ORDER BY o.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select order details: %w", err)
	}
	defer rows.Close()

	var res []model.OrderDetails
	for rows.Next() {
		var d model.OrderDetails
		if err := rows.Scan(&d.ID, &d.UserID, &d.BasketID, &d.Quantity, &d.TotalPriceCents,
			&d.Status, &d.PickupMethod, &d.PointsEarned, &d.CO2SavedGrams, &d.FoodSavedGrams,
			&d.CreatedAt, &d.StudentName, &d.StudentEmail, &d.BasketTitle); err != nil {
			return nil, fmt.Errorf("scan order details: %w", err)
		}
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreditOrderPoints начисляет баллы заказа на профиль пользователя.
// Операция идемпотентна по идентификатору заказа: флаг points_credited
// гарантирует однократное применение дельты при повторных вызовах.
func (r *PostgresRepository) CreditOrderPoints(ctx context.Context, orderID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		userID   uuid.UUID
		earned   int64
		credited bool
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, points_earned, points_credited FROM orders WHERE id = $1 FOR UPDATE`,
		orderID,
	).Scan(&userID, &earned, &credited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	if credited {
		return tx.Commit(ctx)
	}

	// Атомарное прибавление дельты вместо read-modify-write исключает
	// потерянные обновления при параллельных заказах одного пользователя.
	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET points = points + $2 WHERE id = $1`,
		userID, earned,
	); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET points_credited = TRUE WHERE id = $1`,
		orderID,
	); err != nil {
		return fmt.Errorf("mark order credited: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBadgeByName возвращает бейдж по его уникальному имени.
func (r *PostgresRepository) GetBadgeByName(ctx context.Context, name string) (*model.Badge, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, icon, condition_type, condition_value, points_reward
		 FROM badges WHERE name = $1`,
		name,
	)

	var b model.Badge
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.ConditionType, &b.ConditionValue, &b.PointsReward)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("get badge: %w", err)
	}

	return &b, nil
}

// ListBadges возвращает все определения бейджей.
func (r *PostgresRepository) ListBadges(ctx context.Context) ([]model.Badge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, icon, condition_type, condition_value, points_reward
		 FROM badges
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select badges: %w", err)
	}
	defer rows.Close()

	var res []model.Badge
	for rows.Next() {
		var b model.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.ConditionType,
			&b.ConditionValue, &b.PointsReward); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetUserBadgeIDs возвращает идентификаторы бейджей, полученных пользователем.
func (r *PostgresRepository) GetUserBadgeIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select user badges: %w", err)
	}
	defer rows.Close()

	var res []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan badge id: %w", err)
		}
		res = append(res, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AwardBadge выдаёт бейдж пользователю и сообщает, была ли запись создана.
// Уникальный индекс (user_id, badge_id) делает выдачу идемпотентной:
// повторный вызов и гонка двух первых заказов не создают дубликат.
func (r *PostgresRepository) AwardBadge(ctx context.Context, userID, badgeID uuid.UUID) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, badge_id) DO NOTHING`,
		userID, badgeID,
	)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ListActiveChallenges возвращает активные челленджи.
func (r *PostgresRepository) ListActiveChallenges(ctx context.Context) ([]model.Challenge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, challenge_type, goal_value, points_reward, start_date, end_date, active
		 FROM challenges
		 WHERE active = TRUE
		 ORDER BY end_date`,
	)
	if err != nil {
		return nil, fmt.Errorf("select challenges: %w", err)
	}
	defer rows.Close()

	var res []model.Challenge
	for rows.Next() {
		var c model.Challenge
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.ChallengeType, &c.GoalValue,
			&c.PointsReward, &c.StartDate, &c.EndDate, &c.Active); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetUserChallenges возвращает прогресс пользователя по всем челленджам.
func (r *PostgresRepository) GetUserChallenges(ctx context.Context, userID uuid.UUID) ([]model.UserChallenge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, challenge_id, progress, completed, completed_at
		 FROM user_challenges
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select user challenges: %w", err)
	}
	defer rows.Close()

	var res []model.UserChallenge
	for rows.Next() {
		var uc model.UserChallenge
		if err := rows.Scan(&uc.ID, &uc.UserID, &uc.ChallengeID, &uc.Progress, &uc.Completed,
			&uc.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan user challenge: %w", err)
		}
		res = append(res, uc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApplyChallengeProgress прибавляет 1 к прогрессу пользователя по каждому
// активному челленджу за указанный заказ. Операция идемпотентна по
// идентификатору заказа: флаг challenges_applied гарантирует однократное
// применение, upsert делает каждое прибавление атомарным, а флаг completed
// никогда не сбрасывается обратно.
func (r *PostgresRepository) ApplyChallengeProgress(ctx context.Context, orderID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		userID  uuid.UUID
		applied bool
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, challenges_applied FROM orders WHERE id = $1 FOR UPDATE`,
		orderID,
	).Scan(&userID, &applied)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	if applied {
		return tx.Commit(ctx)
	}

	rows, err := tx.Query(ctx, `SELECT id, goal_value FROM challenges WHERE active = TRUE`)
	if err != nil {
		return fmt.Errorf("select active challenges: %w", err)
	}

	type activeChallenge struct {
		id   uuid.UUID
		goal int
	}
	var active []activeChallenge
	for rows.Next() {
		var c activeChallenge
		if err := rows.Scan(&c.id, &c.goal); err != nil {
			rows.Close()
			return fmt.Errorf("scan challenge: %w", err)
		}
		active = append(active, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, c := range active {
		// Каждый заказ увеличивает прогресс ровно на 1 независимо от
		// количества и суммы.
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_challenges (user_id, challenge_id, progress, completed, completed_at)
			 VALUES ($1, $2, 1, 1 >= $3, CASE WHEN 1 >= $3 THEN now() END)
			 ON CONFLICT (user_id, challenge_id) DO UPDATE
			 SET progress = user_challenges.progress + 1,
			     completed = user_challenges.completed OR user_challenges.progress + 1 >= $3,
			     completed_at = COALESCE(user_challenges.completed_at,
			         CASE WHEN user_challenges.progress + 1 >= $3 THEN now() END)`,
			userID, c.id, c.goal,
		); err != nil {
			return fmt.Errorf("upsert challenge progress: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET challenges_applied = TRUE WHERE id = $1`,
		orderID,
	); err != nil {
		return fmt.Errorf("mark challenges applied: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// DeactivateExpiredChallenges выключает челленджи с истёкшим сроком и
// возвращает число затронутых записей.
func (r *PostgresRepository) DeactivateExpiredChallenges(ctx context.Context) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE challenges SET active = FALSE WHERE active = TRUE AND end_date < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate challenges: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
