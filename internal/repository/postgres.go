// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mkazancev/referral-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrReferrerExists возвращается при попытке зарегистрировать реферера с уже существующим email.
var (
	ErrReferrerExists = errors.New("referrer already exists")
	// ErrCodeTaken возвращается, если сгенерированный реферальный код уже занят.
	ErrCodeTaken = errors.New("referral code already taken")
	// ErrReferrerNotFound возвращается, если реферер не найден.
	ErrReferrerNotFound = errors.New("referrer not found")
	// ErrReferralNotFound возвращается, если реферал не найден.
	ErrReferralNotFound = errors.New("referral not found")
	// ErrPaymentNotFound возвращается, если начисление не найдено.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNotificationNotFound возвращается, если уведомление не найдено.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrInvalidTransition возвращается при попытке перевести реферал из конечного статуса.
	ErrInvalidTransition = errors.New("invalid referral status transition")
	// ErrInsufficientPending возвращается при запросе выплаты, превышающей накопленные начисления.
	ErrInsufficientPending = errors.New("insufficient pending amount")
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

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
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

// CreateReferrer создаёт нового реферера с указанным реферальным кодом.
func (r *PostgresRepository) CreateReferrer(ctx context.Context, name, email string, passwordHash []byte, code string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO referrers (name, email, password_hash, code) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, email, passwordHash, code,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == "referrers_code_key" {
				return 0, fmt.Errorf("%w: %s", ErrCodeTaken, code)
			}
			return 0, fmt.Errorf("%w: %s", ErrReferrerExists, email)
		}
		return 0, fmt.Errorf("create referrer: %w", err)
	}
	return id, nil
}

const referrerColumns = `id, name, email, password_hash, code, status,
	total_referrals, successful_referrals, total_earnings, created_at, updated_at`

func scanReferrer(row pgx.Row) (*model.Referrer, error) {
	var (
		ref           model.Referrer
		status        string
		earningsCents int64
	)
	err := row.Scan(&ref.ID, &ref.Name, &ref.Email, &ref.PasswordHash, &ref.Code, &status,
		&ref.TotalReferrals, &ref.SuccessfulReferrals, &earningsCents, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferrerNotFound
		}
		return nil, fmt.Errorf("scan referrer: %w", err)
	}

	ref.Code = strings.TrimSpace(ref.Code)
	ref.Status = model.ReferrerStatus(status)
	ref.TotalEarnings = float64(earningsCents) / 100

	return &ref, nil
}

// GetReferrerByID возвращает реферера по идентификатору.
func (r *PostgresRepository) GetReferrerByID(ctx context.Context, id int64) (*model.Referrer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+referrerColumns+` FROM referrers WHERE id = $1`, id)
	return scanReferrer(row)
}

// GetReferrerByEmail возвращает реферера по email.
func (r *PostgresRepository) GetReferrerByEmail(ctx context.Context, email string) (*model.Referrer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+referrerColumns+` FROM referrers WHERE email = $1`, email)
	return scanReferrer(row)
}

// GetReferrerByCode возвращает реферера по реферальному коду.
func (r *PostgresRepository) GetReferrerByCode(ctx context.Context, code string) (*model.Referrer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+referrerColumns+` FROM referrers WHERE code = $1`, code)
	return scanReferrer(row)
}

// ListReferrers возвращает всех рефереров в порядке убывания даты регистрации.
func (r *PostgresRepository) ListReferrers(ctx context.Context) ([]model.Referrer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+referrerColumns+` FROM referrers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select referrers: %w", err)
	}
	defer rows.Close()

	var res []model.Referrer
	for rows.Next() {
		ref, err := scanReferrer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateReferrerStatus изменяет статус учётной записи реферера.
func (r *PostgresRepository) UpdateReferrerStatus(ctx context.Context, id int64, status model.ReferrerStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE referrers SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update referrer status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReferrerNotFound
	}
	return nil
}

// DeleteReferrer удаляет реферера. Зависимые записи журналов сознательно не
// каскадируются: осиротевшие рефералы и начисления остаются в истории.
func (r *PostgresRepository) DeleteReferrer(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM referrers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete referrer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReferrerNotFound
	}
	return nil
}

// CreateReferral сохраняет новый реферал и в той же транзакции увеличивает
// счётчик рефералов у родительского реферера.
func (r *PostgresRepository) CreateReferral(ctx context.Context, ref *model.Referral) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO referrals (referrer_id, referrer_code, client_name, client_email, service_type, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ref.ReferrerID, ref.ReferrerCode, ref.ClientName, ref.ClientEmail,
		string(ref.ServiceType), string(model.ReferralStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert referral: %w", err)
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE referrers SET total_referrals = total_referrals + 1, updated_at = now() WHERE id = $1`,
		ref.ReferrerID,
	)
	if err != nil {
		return 0, fmt.Errorf("increment total referrals: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return 0, ErrReferrerNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

const referralColumns = `id, referrer_id, referrer_code, client_name, client_email,
	service_type, status, created_at, updated_at`

func scanReferral(row pgx.Row) (*model.Referral, error) {
	var (
		ref         model.Referral
		serviceType string
		status      string
	)
	err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferrerCode, &ref.ClientName, &ref.ClientEmail,
		&serviceType, &status, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("scan referral: %w", err)
	}

	ref.ReferrerCode = strings.TrimSpace(ref.ReferrerCode)
	ref.ServiceType = model.ServiceType(serviceType)
	ref.Status = model.ReferralStatus(status)

	return &ref, nil
}

// GetReferralByID возвращает реферал по идентификатору.
func (r *PostgresRepository) GetReferralByID(ctx context.Context, id int64) (*model.Referral, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id)
	return scanReferral(row)
}

// UpdateReferralStatus переводит реферал в новый статус. Допускаются только
// переходы из pending; при переходе в successful в той же транзакции создаётся
// вознаграждение и обновляются счётчики реферера, поэтому повторное
// начисление за один реферал невозможно.
func (r *PostgresRepository) UpdateReferralStatus(ctx context.Context, id int64, newStatus model.ReferralStatus, rewardCents int64) (*model.Referral, error) {
	var updated *model.Referral

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT `+referralColumns+` FROM referrals WHERE id = $1 FOR UPDATE`, id)
		ref, err := scanReferral(row)
		if err != nil {
			return err
		}

		if ref.Status != model.ReferralStatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ref.Status, newStatus)
		}

		_, err = tx.Exec(ctx,
			`UPDATE referrals SET status = $2, updated_at = now() WHERE id = $1`,
			id, string(newStatus),
		)
		if err != nil {
			return fmt.Errorf("update referral status: %w", err)
		}

		if newStatus == model.ReferralStatusSuccessful {
			_, err = tx.Exec(ctx,
				`INSERT INTO rewards (referrer_id, referral_id, amount, status) VALUES ($1, $2, $3, $4)`,
				ref.ReferrerID, id, rewardCents, string(model.RewardStatusPending),
			)
			if err != nil {
				return fmt.Errorf("insert reward: %w", err)
			}

			_, err = tx.Exec(ctx,
				`UPDATE referrers
				 SET successful_referrals = successful_referrals + 1,
				     total_earnings = total_earnings + $2,
				     updated_at = now()
				 WHERE id = $1`,
				ref.ReferrerID, rewardCents,
			)
			if err != nil {
				return fmt.Errorf("update referrer counters: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		ref.Status = newStatus
		updated = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ListReferralsByReferrer возвращает рефералы указанного реферера.
func (r *PostgresRepository) ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	return collectReferrals(rows)
}

// ListReferrals возвращает все рефералы в порядке убывания даты создания.
func (r *PostgresRepository) ListReferrals(ctx context.Context) ([]model.Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select referrals: %w", err)
	}
	defer rows.Close()

	return collectReferrals(rows)
}

// ListPendingReferrals возвращает рефералы, ожидающие решения внешней системы.
func (r *PostgresRepository) ListPendingReferrals(ctx context.Context, limit int) ([]model.Referral, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(model.ReferralStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending referrals: %w", err)
	}
	defer rows.Close()

	return collectReferrals(rows)
}

func collectReferrals(rows pgx.Rows) ([]model.Referral, error) {
	var res []model.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListRewardsByReferrer возвращает вознаграждения реферера за успешные рефералы.
func (r *PostgresRepository) ListRewardsByReferrer(ctx context.Context, referrerID int64) ([]model.Reward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, referral_id, amount, status, created_at
		 FROM rewards
		 WHERE referrer_id = $1
		 ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select rewards: %w", err)
	}
	defer rows.Close()

	var res []model.Reward
	for rows.Next() {
		var (
			reward      model.Reward
			amountCents int64
			status      string
		)
		if err := rows.Scan(&reward.ID, &reward.ReferrerID, &reward.ReferralID,
			&amountCents, &status, &reward.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}

		reward.Amount = float64(amountCents) / 100
		reward.Status = model.RewardStatus(status)

		res = append(res, reward)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreatePayment сохраняет запись о комиссии, причитающейся рефереру.
func (r *PostgresRepository) CreatePayment(ctx context.Context, referrerID int64, amountCents int64, serviceType model.ServiceType, transactionID string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (referrer_id, amount, service_type, status, transaction_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		referrerID, amountCents, string(serviceType), string(model.PaymentStatusPending), transactionID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return id, nil
}

// UpdatePaymentStatus изменяет статус начисления.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// PaymentTotals содержит агрегаты по начислениям реферера в копейках.
type PaymentTotals struct {
	EarnedCents  int64
	PaidCents    int64
	PendingCents int64
	Count        int
	LastPayment  *time.Time
}

// GetPaymentTotals возвращает агрегированную статистику начислений реферера.
func (r *PostgresRepository) GetPaymentTotals(ctx context.Context, referrerID int64) (*PaymentTotals, error) {
	var t PaymentTotals
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0),
		        COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0),
		        COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
		        COUNT(*),
		        MAX(updated_at) FILTER (WHERE status = 'paid')
		 FROM payments
		 WHERE referrer_id = $1`,
		referrerID,
	).Scan(&t.EarnedCents, &t.PaidCents, &t.PendingCents, &t.Count, &t.LastPayment)
	if err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	return &t, nil
}

// ListPaymentsByReferrer возвращает начисления указанного реферера.
func (r *PostgresRepository) ListPaymentsByReferrer(ctx context.Context, referrerID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, amount, service_type, status, transaction_id, created_at, updated_at
		 FROM payments
		 WHERE referrer_id = $1
		 ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var (
			p           model.Payment
			amountCents int64
			serviceType string
			status      string
		)
		if err := rows.Scan(&p.ID, &p.ReferrerID, &amountCents, &serviceType, &status,
			&p.TransactionID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}

		p.Amount = float64(amountCents) / 100
		p.ServiceType = model.ServiceType(serviceType)
		p.Status = model.PaymentStatus(status)

		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreatePayout создаёт заявку на выплату. Строка реферера блокируется, чтобы
// параллельные заявки не превысили накопленную сумму начислений. Учитываются
// и уже поданные, но ещё не исполненные заявки.
func (r *PostgresRepository) CreatePayout(ctx context.Context, referrerID int64, amountCents int64, paymentMethod, notes string, estimatedDelivery time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM referrers WHERE id = $1 FOR UPDATE`, referrerID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrReferrerNotFound
		}
		return 0, fmt.Errorf("lock referrer for update: %w", err)
	}

	var pendingCents int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE referrer_id = $1 AND status = $2`,
		referrerID, string(model.PaymentStatusPending),
	).Scan(&pendingCents)
	if err != nil {
		return 0, fmt.Errorf("sum pending payments: %w", err)
	}

	var requestedCents int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE referrer_id = $1 AND status = $2`,
		referrerID, string(model.PaymentStatusPending),
	).Scan(&requestedCents)
	if err != nil {
		return 0, fmt.Errorf("sum pending payouts: %w", err)
	}

	if amountCents > pendingCents-requestedCents {
		return 0, ErrInsufficientPending
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO payouts (referrer_id, amount, status, payment_method, notes, estimated_delivery)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		referrerID, amountCents, string(model.PaymentStatusPending), paymentMethod, notes, estimatedDelivery,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payout: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// ListPayoutsByReferrer возвращает историю заявок на выплату реферера.
func (r *PostgresRepository) ListPayoutsByReferrer(ctx context.Context, referrerID int64) ([]model.Payout, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, amount, status, payment_method, notes, requested_at, estimated_delivery
		 FROM payouts
		 WHERE referrer_id = $1
		 ORDER BY requested_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payouts: %w", err)
	}
	defer rows.Close()

	var res []model.Payout
	for rows.Next() {
		var (
			p           model.Payout
			amountCents int64
			status      string
		)
		if err := rows.Scan(&p.ID, &p.ReferrerID, &amountCents, &status, &p.PaymentMethod,
			&p.Notes, &p.RequestedAt, &p.EstimatedDelivery); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}

		p.Amount = float64(amountCents) / 100
		p.Status = model.PaymentStatus(status)

		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateNotification сохраняет уведомление со статусом pending. Доставку
// выполняет внешний процесс.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (referrer_id, kind, subject, body, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.ReferrerID, string(n.Kind), n.Subject, n.Body, "pending",
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// ListNotificationsByReferrer возвращает уведомления реферера.
func (r *PostgresRepository) ListNotificationsByReferrer(ctx context.Context, referrerID int64) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, referrer_id, kind, subject, body, status, is_read, created_at
		 FROM notifications
		 WHERE referrer_id = $1
		 ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.ReferrerID, &kind, &n.Subject, &n.Body,
			&n.Status, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}

		n.Kind = model.NotificationKind(kind)

		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationRead помечает уведомление прочитанным. Уведомление должно
// принадлежать указанному рефереру.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, referrerID, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND referrer_id = $2`,
		id, referrerID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
