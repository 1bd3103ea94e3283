// Package service реализует бизнес-логику реферальной программы.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkazancev/referral-system/internal/engagement"
	"github.com/mkazancev/referral-system/internal/model"
	"github.com/mkazancev/referral-system/internal/notification"
	"github.com/mkazancev/referral-system/internal/repository"
)

// ErrCodeAllocation возвращается, если не удалось подобрать свободный
// реферальный код за отведённое число попыток.
var (
	ErrCodeAllocation = errors.New("could not allocate a unique referral code")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBelowMinimum возвращается при заявке на выплату меньше минимальной суммы.
	ErrBelowMinimum = errors.New("payout amount below minimum")
	// ErrUnknownStatus возвращается при попытке перевести реферал в неизвестный статус.
	ErrUnknownStatus = errors.New("unknown referral status")
	// ErrUnknownServiceType возвращается при неизвестном виде услуги.
	ErrUnknownServiceType = errors.New("unknown service type")
)

const (
	codeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength          = 8
	codeAllocationTries = 10
	payoutDeliveryDelay = 72 * time.Hour
	defaultPayoutMethod = "bank_transfer"
	pendingBatchSize    = 100
	pollInterval        = 5 * time.Second
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateReferrer(ctx context.Context, name, email string, passwordHash []byte, code string) (int64, error)
	GetReferrerByID(ctx context.Context, id int64) (*model.Referrer, error)
	GetReferrerByEmail(ctx context.Context, email string) (*model.Referrer, error)
	GetReferrerByCode(ctx context.Context, code string) (*model.Referrer, error)
	ListReferrers(ctx context.Context) ([]model.Referrer, error)
	UpdateReferrerStatus(ctx context.Context, id int64, status model.ReferrerStatus) error
	DeleteReferrer(ctx context.Context, id int64) error
	CreateReferral(ctx context.Context, ref *model.Referral) (int64, error)
	GetReferralByID(ctx context.Context, id int64) (*model.Referral, error)
	UpdateReferralStatus(ctx context.Context, id int64, newStatus model.ReferralStatus, rewardCents int64) (*model.Referral, error)
	ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error)
	ListReferrals(ctx context.Context) ([]model.Referral, error)
	ListPendingReferrals(ctx context.Context, limit int) ([]model.Referral, error)
	ListRewardsByReferrer(ctx context.Context, referrerID int64) ([]model.Reward, error)
	CreatePayment(ctx context.Context, referrerID int64, amountCents int64, serviceType model.ServiceType, transactionID string) (int64, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error
	GetPaymentTotals(ctx context.Context, referrerID int64) (*repository.PaymentTotals, error)
	ListPaymentsByReferrer(ctx context.Context, referrerID int64) ([]model.Payment, error)
	CreatePayout(ctx context.Context, referrerID int64, amountCents int64, paymentMethod, notes string, estimatedDelivery time.Time) (int64, error)
	ListPayoutsByReferrer(ctx context.Context, referrerID int64) ([]model.Payout, error)
	CreateNotification(ctx context.Context, n *model.Notification) (int64, error)
	ListNotificationsByReferrer(ctx context.Context, referrerID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, referrerID, id int64) error
}

// Service содержит бизнес-логику реферальной программы.
type Service struct {
	repo             Repository
	engagementClient *engagement.Client
	logger           *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом системы
// учёта контрактов.
func NewService(repo Repository, engagementClient *engagement.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:             repo,
		engagementClient: engagementClient,
		logger:           logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterReferrer регистрирует нового реферера и выделяет ему уникальный
// реферальный код.
func (s *Service) RegisterReferrer(ctx context.Context, name, email, password string) (*model.Referrer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var id int64
	backoff := retry.WithMaxRetries(codeAllocationTries-1, retry.NewConstant(10*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		code, err := generateCode()
		if err != nil {
			return err
		}

		newID, err := s.repo.CreateReferrer(ctx, name, email, hash, code)
		if err != nil {
			// Коллизия кода — пробуем следующий, остальное не ретраим.
			if errors.Is(err, repository.ErrCodeTaken) {
				return retry.RetryableError(err)
			}
			return err
		}

		id = newID
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrCodeTaken) {
			return nil, ErrCodeAllocation
		}
		return nil, err
	}

	ref, err := s.repo.GetReferrerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	subject, body := notification.Welcome(ref.Name, ref.Code)
	s.notify(ctx, ref.ID, model.NotificationKindWelcome, subject, body)

	return ref, nil
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}

// AuthenticateReferrer проверяет email и пароль реферера.
func (s *Service) AuthenticateReferrer(ctx context.Context, email, password string) (*model.Referrer, error) {
	ref, err := s.repo.GetReferrerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrReferrerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(ref.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return ref, nil
}

// GetReferrerByID возвращает реферера по идентификатору.
func (s *Service) GetReferrerByID(ctx context.Context, id int64) (*model.Referrer, error) {
	return s.repo.GetReferrerByID(ctx, id)
}

// ResolveAttribution проверяет реферальный код и строит запись атрибуции.
// Код принимается только от активного реферера.
func (s *Service) ResolveAttribution(ctx context.Context, code string) (*model.Attribution, error) {
	ref, err := s.repo.GetReferrerByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if ref.Status != model.ReferrerStatusActive {
		return nil, repository.ErrReferrerNotFound
	}

	return &model.Attribution{
		ReferrerID: ref.ID,
		Code:       ref.Code,
		Name:       ref.Name,
		CapturedAt: time.Now(),
	}, nil
}

// ListReferrers возвращает всех рефереров (административная операция).
func (s *Service) ListReferrers(ctx context.Context) ([]model.Referrer, error) {
	return s.repo.ListReferrers(ctx)
}

// UpdateReferrerStatus изменяет статус учётной записи реферера.
func (s *Service) UpdateReferrerStatus(ctx context.Context, id int64, status model.ReferrerStatus) error {
	switch status {
	case model.ReferrerStatusActive, model.ReferrerStatusInactive, model.ReferrerStatusSuspended:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
	return s.repo.UpdateReferrerStatus(ctx, id, status)
}

// DeleteReferrer удаляет реферера.
func (s *Service) DeleteReferrer(ctx context.Context, id int64) error {
	return s.repo.DeleteReferrer(ctx, id)
}

// RegisterClient регистрирует приведённого клиента. Если атрибуция присутствует
// и её код принадлежит активному рефереру, создаётся реферал; иначе клиент
// регистрируется без привязки — ошибка атрибуции не блокирует регистрацию.
func (s *Service) RegisterClient(ctx context.Context, clientName, clientEmail string, serviceType model.ServiceType, attr *model.Attribution) (*model.Referral, error) {
	if !isValidServiceType(serviceType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServiceType, serviceType)
	}

	if attr == nil {
		return nil, nil
	}

	ref, err := s.repo.GetReferrerByCode(ctx, attr.Code)
	if err != nil {
		if errors.Is(err, repository.ErrReferrerNotFound) {
			s.logger.Info("attribution code not found, registering unattributed",
				zap.String("code", attr.Code))
			return nil, nil
		}
		return nil, err
	}

	if ref.Status != model.ReferrerStatusActive {
		s.logger.Info("attribution referrer is not active, registering unattributed",
			zap.String("code", attr.Code), zap.String("status", string(ref.Status)))
		return nil, nil
	}

	referral := &model.Referral{
		ReferrerID:   ref.ID,
		ReferrerCode: ref.Code,
		ClientName:   clientName,
		ClientEmail:  clientEmail,
		ServiceType:  serviceType,
		Status:       model.ReferralStatusPending,
	}

	id, err := s.repo.CreateReferral(ctx, referral)
	if err != nil {
		return nil, err
	}

	referral.ID = id
	return referral, nil
}

func isValidServiceType(t model.ServiceType) bool {
	switch t {
	case model.ServiceTypeConsulting, model.ServiceTypeAssessment, model.ServiceTypeForensics,
		model.ServiceTypeTraining, model.ServiceTypeCompliance:
		return true
	}
	return false
}

// UpdateReferralStatus переводит реферал в новый статус. Переход в successful
// создаёт вознаграждение и отправляет уведомления рефереру.
func (s *Service) UpdateReferralStatus(ctx context.Context, id int64, newStatus model.ReferralStatus) (*model.Referral, error) {
	switch newStatus {
	case model.ReferralStatusSuccessful, model.ReferralStatusFailed, model.ReferralStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, newStatus)
	}

	ref, err := s.repo.GetReferralByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Вид услуги неизменяем, поэтому вознаграждение можно посчитать до
	// транзакции. Статус повторно проверяется под блокировкой.
	var rewardCents int64
	if newStatus == model.ReferralStatusSuccessful {
		rewardCents = RewardCents(ref.ServiceType)
	}

	updated, err := s.repo.UpdateReferralStatus(ctx, id, newStatus, rewardCents)
	if err != nil {
		return nil, err
	}

	if newStatus == model.ReferralStatusSuccessful {
		referrer, err := s.repo.GetReferrerByID(ctx, updated.ReferrerID)
		referrerName := updated.ReferrerCode
		if err == nil {
			referrerName = referrer.Name
		}

		subject, body := notification.Commission(referrerName, updated.ClientName, float64(rewardCents)/100)
		s.notify(ctx, updated.ReferrerID, model.NotificationKindCommission, subject, body)

		subject, body = notification.ServiceCompleted(updated.ClientName, string(updated.ServiceType))
		s.notify(ctx, updated.ReferrerID, model.NotificationKindServiceCompleted, subject, body)
	}

	return updated, nil
}

// GetReferralByID возвращает реферал по идентификатору.
func (s *Service) GetReferralByID(ctx context.Context, id int64) (*model.Referral, error) {
	return s.repo.GetReferralByID(ctx, id)
}

// ListReferralsByReferrer возвращает рефералы указанного реферера.
func (s *Service) ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	return s.repo.ListReferralsByReferrer(ctx, referrerID)
}

// ListReferrals возвращает все рефералы (административная операция).
func (s *Service) ListReferrals(ctx context.Context) ([]model.Referral, error) {
	return s.repo.ListReferrals(ctx)
}

// ListRewardsByReferrer возвращает вознаграждения реферера за успешные рефералы.
func (s *Service) ListRewardsByReferrer(ctx context.Context, referrerID int64) ([]model.Reward, error) {
	return s.repo.ListRewardsByReferrer(ctx, referrerID)
}

// RecordPayment фиксирует комиссию реферера с проданной услуги. Сумма комиссии
// вычисляется по ставке для вида услуги.
func (s *Service) RecordPayment(ctx context.Context, referrerID int64, serviceAmount float64, serviceType model.ServiceType) (*model.Payment, error) {
	if !isValidServiceType(serviceType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServiceType, serviceType)
	}
	if serviceAmount <= 0 {
		return nil, errors.New("service amount must be positive")
	}

	amountCents := CommissionCents(toCents(serviceAmount), serviceType)
	transactionID := uuid.NewString()

	id, err := s.repo.CreatePayment(ctx, referrerID, amountCents, serviceType, transactionID)
	if err != nil {
		return nil, err
	}

	return &model.Payment{
		ID:            id,
		ReferrerID:    referrerID,
		Amount:        float64(amountCents) / 100,
		ServiceType:   serviceType,
		Status:        model.PaymentStatusPending,
		TransactionID: transactionID,
	}, nil
}

// UpdatePaymentStatus изменяет статус начисления.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	switch status {
	case model.PaymentStatusPending, model.PaymentStatusPaid, model.PaymentStatusFailed:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
	return s.repo.UpdatePaymentStatus(ctx, id, status)
}

// GetPaymentStats возвращает агрегированную статистику начислений реферера.
func (s *Service) GetPaymentStats(ctx context.Context, referrerID int64) (*model.PaymentStats, error) {
	totals, err := s.repo.GetPaymentTotals(ctx, referrerID)
	if err != nil {
		return nil, err
	}

	return &model.PaymentStats{
		TotalEarned:   float64(totals.EarnedCents) / 100,
		TotalPaid:     float64(totals.PaidCents) / 100,
		PendingAmount: float64(totals.PendingCents) / 100,
		PaymentCount:  totals.Count,
		LastPayment:   totals.LastPayment,
	}, nil
}

// ListPaymentsByReferrer возвращает начисления реферера.
func (s *Service) ListPaymentsByReferrer(ctx context.Context, referrerID int64) ([]model.Payment, error) {
	return s.repo.ListPaymentsByReferrer(ctx, referrerID)
}

// RequestPayout создаёт заявку на выплату накопленных комиссий. Минимальная
// сумма проверяется здесь, достаточность накоплений — в транзакции репозитория.
func (s *Service) RequestPayout(ctx context.Context, referrerID int64, amount float64, paymentMethod, notes string) (*model.Payout, error) {
	amountCents := toCents(amount)
	if amountCents < MinimumPayoutCents {
		return nil, fmt.Errorf("%w: minimum is %.2f", ErrBelowMinimum, float64(MinimumPayoutCents)/100)
	}

	if paymentMethod == "" {
		paymentMethod = defaultPayoutMethod
	}

	estimatedDelivery := time.Now().Add(payoutDeliveryDelay)

	id, err := s.repo.CreatePayout(ctx, referrerID, amountCents, paymentMethod, notes, estimatedDelivery)
	if err != nil {
		return nil, err
	}

	referrerName := ""
	if ref, err := s.repo.GetReferrerByID(ctx, referrerID); err == nil {
		referrerName = ref.Name
	}

	subject, body := notification.PayoutRequested(referrerName, float64(amountCents)/100, estimatedDelivery)
	s.notify(ctx, referrerID, model.NotificationKindPayout, subject, body)

	return &model.Payout{
		ID:                id,
		ReferrerID:        referrerID,
		Amount:            float64(amountCents) / 100,
		Status:            model.PaymentStatusPending,
		PaymentMethod:     paymentMethod,
		Notes:             notes,
		RequestedAt:       time.Now(),
		EstimatedDelivery: estimatedDelivery,
	}, nil
}

// ListPayoutsByReferrer возвращает историю заявок на выплату реферера.
func (s *Service) ListPayoutsByReferrer(ctx context.Context, referrerID int64) ([]model.Payout, error) {
	return s.repo.ListPayoutsByReferrer(ctx, referrerID)
}

// ListNotificationsByReferrer возвращает уведомления реферера.
func (s *Service) ListNotificationsByReferrer(ctx context.Context, referrerID int64) ([]model.Notification, error) {
	return s.repo.ListNotificationsByReferrer(ctx, referrerID)
}

// MarkNotificationRead помечает уведомление реферера прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, referrerID, id int64) error {
	return s.repo.MarkNotificationRead(ctx, referrerID, id)
}

// notify сохраняет уведомление по принципу fire-and-forget: ошибка
// записывается в лог и не прерывает основную операцию.
func (s *Service) notify(ctx context.Context, referrerID int64, kind model.NotificationKind, subject, body string) {
	_, err := s.repo.CreateNotification(ctx, &model.Notification{
		ReferrerID: referrerID,
		Kind:       kind,
		Subject:    subject,
		Body:       body,
	})
	if err != nil {
		s.logger.Warn("create notification",
			zap.Int64("referrerID", referrerID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// StartEngagementUpdates запускает фоновый процесс опроса системы учёта
// контрактов и обновления статусов рефералов.
func (s *Service) StartEngagementUpdates(ctx context.Context) {
	if s.engagementClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processEngagementBatch(ctx)
			}
		}
	}()
}

func (s *Service) processEngagementBatch(ctx context.Context) {
	referrals, err := s.repo.ListPendingReferrals(ctx, pendingBatchSize)
	if err != nil {
		return
	}

	for _, ref := range referrals {
		resp, statusCode, retryAfter, err := s.engagementClient.GetEngagement(ctx, ref.ID)
		if err != nil {
			continue
		}

		if statusCode == 0 {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil {
			continue
		}

		var newStatus model.ReferralStatus

		switch resp.Status {
		case "REGISTERED", "IN_PROGRESS":
			continue
		case "COMPLETED":
			newStatus = model.ReferralStatusSuccessful
		case "DECLINED":
			newStatus = model.ReferralStatusFailed
		default:
			continue
		}

		if _, err := s.UpdateReferralStatus(ctx, ref.ID, newStatus); err != nil {
			s.logger.Warn("update referral status from engagement system",
				zap.Int64("referralID", ref.ID), zap.Error(err))
		}
	}
}
