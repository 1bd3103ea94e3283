// Package handler содержит HTTP-обработчики API реферального сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mkazancev/referral-system/internal/attribution"
	"github.com/mkazancev/referral-system/internal/middleware"
	"github.com/mkazancev/referral-system/internal/model"
	"github.com/mkazancev/referral-system/internal/repository"
	"github.com/mkazancev/referral-system/internal/service"
	"github.com/mkazancev/referral-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterReferrer(ctx context.Context, name, email, password string) (*model.Referrer, error)
	AuthenticateReferrer(ctx context.Context, email, password string) (*model.Referrer, error)
	GetReferrerByID(ctx context.Context, id int64) (*model.Referrer, error)
	ResolveAttribution(ctx context.Context, code string) (*model.Attribution, error)
	ListReferrers(ctx context.Context) ([]model.Referrer, error)
	UpdateReferrerStatus(ctx context.Context, id int64, status model.ReferrerStatus) error
	DeleteReferrer(ctx context.Context, id int64) error
	RegisterClient(ctx context.Context, clientName, clientEmail string, serviceType model.ServiceType, attr *model.Attribution) (*model.Referral, error)
	UpdateReferralStatus(ctx context.Context, id int64, newStatus model.ReferralStatus) (*model.Referral, error)
	ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error)
	ListReferrals(ctx context.Context) ([]model.Referral, error)
	ListRewardsByReferrer(ctx context.Context, referrerID int64) ([]model.Reward, error)
	RecordPayment(ctx context.Context, referrerID int64, serviceAmount float64, serviceType model.ServiceType) (*model.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error
	GetPaymentStats(ctx context.Context, referrerID int64) (*model.PaymentStats, error)
	ListPaymentsByReferrer(ctx context.Context, referrerID int64) ([]model.Payment, error)
	RequestPayout(ctx context.Context, referrerID int64, amount float64, paymentMethod, notes string) (*model.Payout, error)
	ListPayoutsByReferrer(ctx context.Context, referrerID int64) ([]model.Payout, error)
	ListNotificationsByReferrer(ctx context.Context, referrerID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, referrerID, id int64) error
}

// Handler реализует HTTP-обработчики API реферального сервиса.
type Handler struct {
	service          Service
	logger           *zap.Logger
	authMiddleware   *middleware.AuthMiddleware
	attributionStore attribution.Store
	adminKey         string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, store attribution.Store, adminKey string) *Handler {
	return &Handler{
		service:          s,
		logger:           logger,
		authMiddleware:   auth,
		attributionStore: store,
		adminKey:         adminKey,
	}
}

type registerReferrerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type referrerResponse struct {
	ID                  int64   `json:"id"`
	Name                string  `json:"name"`
	Email               string  `json:"email"`
	Code                string  `json:"code"`
	Status              string  `json:"status"`
	TotalReferrals      int     `json:"total_referrals"`
	SuccessfulReferrals int     `json:"successful_referrals"`
	TotalEarnings       float64 `json:"total_earnings"`
	CreatedAt           string  `json:"created_at"`
}

func toReferrerResponse(ref *model.Referrer) referrerResponse {
	return referrerResponse{
		ID:                  ref.ID,
		Name:                ref.Name,
		Email:               ref.Email,
		Code:                ref.Code,
		Status:              string(ref.Status),
		TotalReferrals:      ref.TotalReferrals,
		SuccessfulReferrals: ref.SuccessfulReferrals,
		TotalEarnings:       ref.TotalEarnings,
		CreatedAt:           ref.CreatedAt.Format(time.RFC3339),
	}
}

// RegisterReferrer обрабатывает регистрацию нового реферера.
func (h *Handler) RegisterReferrer(w http.ResponseWriter, r *http.Request) {
	var req registerReferrerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Password == "" || !validation.IsValidEmail(req.Email) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ref, err := h.service.RegisterReferrer(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrReferrerExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register referrer error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, ref.ID)
	h.writeJSON(w, toReferrerResponse(ref))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginReferrer выполняет аутентификацию реферера и установку cookie.
func (h *Handler) LoginReferrer(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ref, err := h.service.AuthenticateReferrer(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login referrer error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, ref.ID)
	w.WriteHeader(http.StatusOK)
}

type registerClientRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	ServiceType string `json:"service_type"`
}

type registerClientResponse struct {
	Attributed bool  `json:"attributed"`
	ReferralID int64 `json:"referral_id,omitempty"`
}

// RegisterClient обрабатывает регистрацию приведённого клиента. При наличии
// атрибуции создаётся реферал; её отсутствие или недействительность не
// мешает регистрации.
func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	var req registerClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || !validation.IsValidEmail(req.Email) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	attr, err := h.attributionStore.Get(r)
	if err != nil {
		attr = nil
	}

	referral, err := h.service.RegisterClient(r.Context(), req.Name, req.Email, model.ServiceType(req.ServiceType), attr)
	if err != nil {
		if errors.Is(err, service.ErrUnknownServiceType) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("register client error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := registerClientResponse{}
	if referral != nil {
		resp.Attributed = true
		resp.ReferralID = referral.ID
	}

	h.writeJSON(w, resp)
}

// GetAttribution возвращает текущую запись атрибуции посетителя.
func (h *Handler) GetAttribution(w http.ResponseWriter, r *http.Request) {
	attr, err := h.attributionStore.Get(r)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, attr)
}

// GetProfile возвращает профиль текущего реферера.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ref, err := h.service.GetReferrerByID(r.Context(), referrerID)
	if err != nil {
		if errors.Is(err, repository.ErrReferrerNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, toReferrerResponse(ref))
}

type referralResponse struct {
	ID          int64  `json:"id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ServiceType string `json:"service_type"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toReferralResponses(referrals []model.Referral) []referralResponse {
	resp := make([]referralResponse, 0, len(referrals))
	for _, ref := range referrals {
		resp = append(resp, referralResponse{
			ID:          ref.ID,
			ClientName:  ref.ClientName,
			ClientEmail: ref.ClientEmail,
			ServiceType: string(ref.ServiceType),
			Status:      string(ref.Status),
			CreatedAt:   ref.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}

// GetReferrals возвращает рефералы текущего реферера.
func (h *Handler) GetReferrals(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	referrals, err := h.service.ListReferralsByReferrer(r.Context(), referrerID)
	if err != nil {
		h.logger.Error("get referrals error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(referrals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, toReferralResponses(referrals))
}

type rewardResponse struct {
	ID         int64   `json:"id"`
	ReferralID int64   `json:"referral_id"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
}

// GetRewards возвращает вознаграждения текущего реферера.
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	rewards, err := h.service.ListRewardsByReferrer(r.Context(), referrerID)
	if err != nil {
		h.logger.Error("get rewards error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(rewards) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		resp = append(resp, rewardResponse{
			ID:         rw.ID,
			ReferralID: rw.ReferralID,
			Amount:     rw.Amount,
			Status:     string(rw.Status),
			CreatedAt:  rw.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

// GetStats возвращает статистику начислений текущего реферера.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetPaymentStats(r.Context(), referrerID)
	if err != nil {
		h.logger.Error("get stats error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, stats)
}

type paymentResponse struct {
	ID            int64   `json:"id"`
	Amount        float64 `json:"amount"`
	ServiceType   string  `json:"service_type"`
	Status        string  `json:"status"`
	TransactionID string  `json:"transaction_id"`
	CreatedAt     string  `json:"created_at"`
}

// GetPayments возвращает начисления текущего реферера.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	payments, err := h.service.ListPaymentsByReferrer(r.Context(), referrerID)
	if err != nil {
		h.logger.Error("get payments error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			ID:            p.ID,
			Amount:        p.Amount,
			ServiceType:   string(p.ServiceType),
			Status:        string(p.Status),
			TransactionID: p.TransactionID,
			CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type payoutRequest struct {
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Notes         string  `json:"notes"`
}

type payoutResponse struct {
	ID                int64   `json:"id"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status"`
	PaymentMethod     string  `json:"payment_method"`
	Notes             string  `json:"notes,omitempty"`
	RequestedAt       string  `json:"requested_at"`
	EstimatedDelivery string  `json:"estimated_delivery"`
}

// RequestPayout создаёт заявку на выплату для текущего реферера.
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req payoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payout, err := h.service.RequestPayout(r.Context(), referrerID, req.Amount, req.PaymentMethod, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrBelowMinimum) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		if errors.Is(err, repository.ErrInsufficientPending) {
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
			return
		}
		h.logger.Error("request payout error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, payoutResponse{
		ID:                payout.ID,
		Amount:            payout.Amount,
		Status:            string(payout.Status),
		PaymentMethod:     payout.PaymentMethod,
		Notes:             payout.Notes,
		RequestedAt:       payout.RequestedAt.Format(time.RFC3339),
		EstimatedDelivery: payout.EstimatedDelivery.Format(time.RFC3339),
	})
}

// GetPayouts возвращает историю заявок на выплату текущего реферера.
func (h *Handler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	payouts, err := h.service.ListPayoutsByReferrer(r.Context(), referrerID)
	if err != nil {
		h.logger.Error("get payouts error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(payouts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]payoutResponse, 0, len(payouts))
	for _, p := range payouts {
		resp = append(resp, payoutResponse{
			ID:                p.ID,
			Amount:            p.Amount,
			Status:            string(p.Status),
			PaymentMethod:     p.PaymentMethod,
			Notes:             p.Notes,
			RequestedAt:       p.RequestedAt.Format(time.RFC3339),
			EstimatedDelivery: p.EstimatedDelivery.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

type notificationResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// GetNotifications возвращает уведомления текущего реферера.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	notifications, err := h.service.ListNotificationsByReferrer(r.Context(), referrerID)
	if err != nil {
		h.logger.Error("get notifications error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(notifications) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Subject:   n.Subject,
			Body:      n.Body,
			Status:    n.Status,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, resp)
}

// MarkNotificationRead помечает уведомление текущего реферера прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	referrerID, ok := middleware.GetReferrerIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := h.pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), referrerID, id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("mark notification read error", zap.Error(err), zap.Int64("referrerID", referrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminListReferrers возвращает всех рефереров.
func (h *Handler) AdminListReferrers(w http.ResponseWriter, r *http.Request) {
	referrers, err := h.service.ListReferrers(r.Context())
	if err != nil {
		h.logger.Error("list referrers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(referrers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]referrerResponse, 0, len(referrers))
	for i := range referrers {
		resp = append(resp, toReferrerResponse(&referrers[i]))
	}

	h.writeJSON(w, resp)
}

type statusRequest struct {
	Status string `json:"status"`
}

// AdminUpdateReferrerStatus изменяет статус учётной записи реферера.
func (h *Handler) AdminUpdateReferrerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateReferrerStatus(r.Context(), id, model.ReferrerStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrReferrerNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("update referrer status error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminDeleteReferrer удаляет реферера.
func (h *Handler) AdminDeleteReferrer(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteReferrer(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrReferrerNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("delete referrer error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AdminListReferrals возвращает все рефералы.
func (h *Handler) AdminListReferrals(w http.ResponseWriter, r *http.Request) {
	referrals, err := h.service.ListReferrals(r.Context())
	if err != nil {
		h.logger.Error("list referrals error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(referrals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, toReferralResponses(referrals))
}

// AdminUpdateReferralStatus переводит реферал в новый статус.
func (h *Handler) AdminUpdateReferralStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	referral, err := h.service.UpdateReferralStatus(r.Context(), id, model.ReferralStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrReferralNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInvalidTransition):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("update referral status error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, referralResponse{
		ID:          referral.ID,
		ClientName:  referral.ClientName,
		ClientEmail: referral.ClientEmail,
		ServiceType: string(referral.ServiceType),
		Status:      string(referral.Status),
		CreatedAt:   referral.CreatedAt.Format(time.RFC3339),
	})
}

type createPaymentRequest struct {
	ReferrerID    int64   `json:"referrer_id"`
	ServiceAmount float64 `json:"service_amount"`
	ServiceType   string  `json:"service_type"`
}

// AdminCreatePayment фиксирует комиссию реферера с проданной услуги.
func (h *Handler) AdminCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.ReferrerID <= 0 || req.ServiceAmount <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), req.ReferrerID, req.ServiceAmount, model.ServiceType(req.ServiceType))
	if err != nil {
		if errors.Is(err, service.ErrUnknownServiceType) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("create payment error", zap.Error(err), zap.Int64("referrerID", req.ReferrerID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, paymentResponse{
		ID:            payment.ID,
		Amount:        payment.Amount,
		ServiceType:   string(payment.ServiceType),
		Status:        string(payment.Status),
		TransactionID: payment.TransactionID,
	})
}

// AdminUpdatePaymentStatus изменяет статус начисления.
func (h *Handler) AdminUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdatePaymentStatus(r.Context(), id, model.PaymentStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrPaymentNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("update payment status error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
