package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mkazancev/referral-system/internal/attribution"
	"github.com/mkazancev/referral-system/internal/middleware"
	"github.com/mkazancev/referral-system/internal/model"
	"github.com/mkazancev/referral-system/internal/repository"
	"github.com/mkazancev/referral-system/internal/service"
)

type stubService struct {
	registerReferrer    *model.Referrer
	registerReferrerErr error

	authReferrer    *model.Referrer
	authReferrerErr error

	referrerByID    *model.Referrer
	referrerByIDErr error

	attribution    *model.Attribution
	attributionErr error

	registerClientReferral *model.Referral
	registerClientErr      error
	registerClientAttr     *model.Attribution

	updatedReferral   *model.Referral
	updateReferralErr error

	referralsResp []model.Referral
	referralsErr  error

	rewardsResp []model.Reward
	rewardsErr  error

	payment    *model.Payment
	paymentErr error

	stats    *model.PaymentStats
	statsErr error

	paymentsResp []model.Payment
	paymentsErr  error

	payout    *model.Payout
	payoutErr error

	payoutsResp []model.Payout
	payoutsErr  error

	notificationsResp []model.Notification
	notificationsErr  error
}

func (s *stubService) RegisterReferrer(ctx context.Context, name, email, password string) (*model.Referrer, error) {
	return s.registerReferrer, s.registerReferrerErr
}

func (s *stubService) AuthenticateReferrer(ctx context.Context, email, password string) (*model.Referrer, error) {
	return s.authReferrer, s.authReferrerErr
}

func (s *stubService) GetReferrerByID(ctx context.Context, id int64) (*model.Referrer, error) {
	return s.referrerByID, s.referrerByIDErr
}

func (s *stubService) ResolveAttribution(ctx context.Context, code string) (*model.Attribution, error) {
	return s.attribution, s.attributionErr
}

func (s *stubService) ListReferrers(ctx context.Context) ([]model.Referrer, error) {
	return nil, nil
}

func (s *stubService) UpdateReferrerStatus(ctx context.Context, id int64, status model.ReferrerStatus) error {
	return nil
}

func (s *stubService) DeleteReferrer(ctx context.Context, id int64) error { return nil }

func (s *stubService) RegisterClient(ctx context.Context, clientName, clientEmail string, serviceType model.ServiceType, attr *model.Attribution) (*model.Referral, error) {
	s.registerClientAttr = attr
	return s.registerClientReferral, s.registerClientErr
}

func (s *stubService) UpdateReferralStatus(ctx context.Context, id int64, newStatus model.ReferralStatus) (*model.Referral, error) {
	return s.updatedReferral, s.updateReferralErr
}

func (s *stubService) ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]model.Referral, error) {
	return s.referralsResp, s.referralsErr
}

func (s *stubService) ListReferrals(ctx context.Context) ([]model.Referral, error) {
	return s.referralsResp, s.referralsErr
}

func (s *stubService) ListRewardsByReferrer(ctx context.Context, referrerID int64) ([]model.Reward, error) {
	return s.rewardsResp, s.rewardsErr
}

func (s *stubService) RecordPayment(ctx context.Context, referrerID int64, serviceAmount float64, serviceType model.ServiceType) (*model.Payment, error) {
	return s.payment, s.paymentErr
}

func (s *stubService) UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	return nil
}

func (s *stubService) GetPaymentStats(ctx context.Context, referrerID int64) (*model.PaymentStats, error) {
	return s.stats, s.statsErr
}

func (s *stubService) ListPaymentsByReferrer(ctx context.Context, referrerID int64) ([]model.Payment, error) {
	return s.paymentsResp, s.paymentsErr
}

func (s *stubService) RequestPayout(ctx context.Context, referrerID int64, amount float64, paymentMethod, notes string) (*model.Payout, error) {
	return s.payout, s.payoutErr
}

func (s *stubService) ListPayoutsByReferrer(ctx context.Context, referrerID int64) ([]model.Payout, error) {
	return s.payoutsResp, s.payoutsErr
}

func (s *stubService) ListNotificationsByReferrer(ctx context.Context, referrerID int64) ([]model.Notification, error) {
	return s.notificationsResp, s.notificationsErr
}

func (s *stubService) MarkNotificationRead(ctx context.Context, referrerID, id int64) error {
	return nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")
	store := attribution.NewCookieStore("test-secret")

	return NewHandler(svc, logger, auth, store, "admin-key")
}

func TestRegisterReferrer_Success(t *testing.T) {
	svc := &stubService{
		registerReferrer: &model.Referrer{
			ID:     42,
			Name:   "Alice",
			Email:  "alice@example.com",
			Code:   "ABCD1234",
			Status: model.ReferrerStatusActive,
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerReferrerRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/referrer/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterReferrer(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("expected auth cookie to be set")
	}

	var resp referrerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 42 || resp.Code != "ABCD1234" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterReferrer_Conflict(t *testing.T) {
	svc := &stubService{
		registerReferrerErr: repository.ErrReferrerExists,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerReferrerRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/referrer/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterReferrer(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestRegisterReferrer_BadEmail(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerReferrerRequest{
		Name:     "Alice",
		Email:    "not-an-email",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/referrer/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterReferrer(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestLoginReferrer_Unauthorized(t *testing.T) {
	svc := &stubService{
		authReferrerErr: service.ErrInvalidCredentials,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/referrer/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.LoginReferrer(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestRegisterClient_Unattributed(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerClientRequest{
		Name:        "Bob",
		Email:       "bob@example.com",
		ServiceType: "consulting",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/client/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterClient(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp registerClientResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Attributed {
		t.Fatalf("expected unattributed registration, got %+v", resp)
	}
	if svc.registerClientAttr != nil {
		t.Fatalf("expected nil attribution without cookie, got %+v", svc.registerClientAttr)
	}
}

func TestRegisterClient_WithAttributionCookie(t *testing.T) {
	svc := &stubService{
		registerClientReferral: &model.Referral{ID: 7, ReferrerID: 1},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerClientRequest{
		Name:        "Bob",
		Email:       "bob@example.com",
		ServiceType: "consulting",
	})

	setRec := httptest.NewRecorder()
	err := h.attributionStore.Set(setRec, &model.Attribution{
		ReferrerID: 1,
		Code:       "ABCD1234",
		CapturedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("set attribution: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/client/register", bytes.NewReader(body))
	req.AddCookie(setRec.Result().Cookies()[0])
	rec := httptest.NewRecorder()

	h.RegisterClient(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp registerClientResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Attributed || resp.ReferralID != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if svc.registerClientAttr == nil || svc.registerClientAttr.Code != "ABCD1234" {
		t.Fatalf("attribution was not passed to service: %+v", svc.registerClientAttr)
	}
}

func TestGetAttribution_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/attribution", nil)
	rec := httptest.NewRecorder()

	h.GetAttribution(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestGetReferrals_NoContent(t *testing.T) {
	svc := &stubService{
		referralsResp: []model.Referral{},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/referrer/referrals", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.SetAuthCookie(rec, 1)
	cookie := rec.Result().Cookies()[0]

	req.AddCookie(cookie)
	respRec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetReferrals))
	handlerWithAuth.ServeHTTP(respRec, req)

	res := respRec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestGetReferrals_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/referrer/referrals", nil)
	rec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetReferrals))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetRewards_JSONResponse(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubService{
		rewardsResp: []model.Reward{
			{ID: 1, ReferrerID: 1, ReferralID: 5, Amount: 75, Status: model.RewardStatusPending, CreatedAt: now},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/referrer/rewards", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.SetAuthCookie(rec, 1)
	req.AddCookie(rec.Result().Cookies()[0])

	respRec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetRewards))
	handlerWithAuth.ServeHTTP(respRec, req)

	res := respRec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []rewardResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ReferralID != 5 || resp[0].Amount != 75 {
		t.Fatalf("unexpected rewards: %+v", resp)
	}
}

func TestGetStats_JSONResponse(t *testing.T) {
	svc := &stubService{
		stats: &model.PaymentStats{
			TotalEarned:   155,
			TotalPaid:     100,
			PendingAmount: 55,
			PaymentCount:  3,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/referrer/stats", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.SetAuthCookie(rec, 1)
	req.AddCookie(rec.Result().Cookies()[0])

	respRec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetStats))
	handlerWithAuth.ServeHTTP(respRec, req)

	res := respRec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var stats model.PaymentStats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.TotalEarned != 155 || stats.PendingAmount != 55 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRequestPayout_BelowMinimum(t *testing.T) {
	svc := &stubService{
		payoutErr: service.ErrBelowMinimum,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(payoutRequest{Amount: 10})

	req := httptest.NewRequest(http.MethodPost, "/api/referrer/payouts", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.authMiddleware.SetAuthCookie(rec, 1)
	req.AddCookie(rec.Result().Cookies()[0])

	respRec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.RequestPayout))
	handlerWithAuth.ServeHTTP(respRec, req)

	res := respRec.Result()
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRequestPayout_InsufficientPending(t *testing.T) {
	svc := &stubService{
		payoutErr: repository.ErrInsufficientPending,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(payoutRequest{Amount: 100})

	req := httptest.NewRequest(http.MethodPost, "/api/referrer/payouts", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.authMiddleware.SetAuthCookie(rec, 1)
	req.AddCookie(rec.Result().Cookies()[0])

	respRec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.RequestPayout))
	handlerWithAuth.ServeHTTP(respRec, req)

	res := respRec.Result()
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusPaymentRequired)
	}
}

func TestAdminRoutes_RequireKey(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/referrers", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status without key = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/referrers", nil)
	req.Header.Set("X-Admin-Key", "admin-key")
	rec = httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status with key = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestAdminUpdateReferralStatus_Conflict(t *testing.T) {
	svc := &stubService{
		updateReferralErr: repository.ErrInvalidTransition,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(statusRequest{Status: "successful"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/referrals/5/status", bytes.NewReader(body))
	req.Header.Set("X-Admin-Key", "admin-key")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}
