// Package model содержит доменные сущности реферального сервиса.
package model

import "time"

// ReferrerStatus описывает состояние учётной записи реферера.
type ReferrerStatus string

const (
	ReferrerStatusActive    ReferrerStatus = "active"
	ReferrerStatusInactive  ReferrerStatus = "inactive"
	ReferrerStatusSuspended ReferrerStatus = "suspended"
)

// Referrer представляет зарегистрированного партнёра реферальной программы.
type Referrer struct {
	ID                  int64
	Name                string
	Email               string
	PasswordHash        []byte
	Code                string
	Status              ReferrerStatus
	TotalReferrals      int
	SuccessfulReferrals int
	TotalEarnings       float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ServiceType описывает вид услуги, к которой привязан реферал.
type ServiceType string

const (
	ServiceTypeConsulting ServiceType = "consulting"
	ServiceTypeAssessment ServiceType = "assessment"
	ServiceTypeForensics  ServiceType = "forensics"
	ServiceTypeTraining   ServiceType = "training"
	ServiceTypeCompliance ServiceType = "compliance"
)

// ReferralStatus описывает статус обработки реферала.
type ReferralStatus string

const (
	ReferralStatusPending    ReferralStatus = "pending"
	ReferralStatusSuccessful ReferralStatus = "successful"
	ReferralStatusFailed     ReferralStatus = "failed"
	ReferralStatusCancelled  ReferralStatus = "cancelled"
)

// Referral связывает реферера с приведённым клиентом и выбранной услугой.
type Referral struct {
	ID           int64
	ReferrerID   int64
	ReferrerCode string
	ClientName   string
	ClientEmail  string
	ServiceType  ServiceType
	Status       ReferralStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RewardStatus описывает состояние вознаграждения.
type RewardStatus string

const (
	RewardStatusPending RewardStatus = "pending"
	RewardStatusPaid    RewardStatus = "paid"
)

// Reward описывает разовое вознаграждение за успешный реферал.
type Reward struct {
	ID         int64
	ReferrerID int64
	ReferralID int64
	Amount     float64
	Status     RewardStatus
	CreatedAt  time.Time
}

// PaymentStatus описывает состояние комиссионного начисления или выплаты.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment описывает комиссию, причитающуюся рефереру за проданную услугу.
type Payment struct {
	ID            int64
	ReferrerID    int64
	Amount        float64
	ServiceType   ServiceType
	Status        PaymentStatus
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Payout описывает заявку на вывод накопленных комиссий.
type Payout struct {
	ID                int64
	ReferrerID        int64
	Amount            float64
	Status            PaymentStatus
	PaymentMethod     string
	Notes             string
	RequestedAt       time.Time
	EstimatedDelivery time.Time
}

// PaymentStats содержит агрегированную статистику начислений реферера.
type PaymentStats struct {
	TotalEarned   float64    `json:"total_earned"`
	TotalPaid     float64    `json:"total_paid"`
	PendingAmount float64    `json:"pending_amount"`
	PaymentCount  int        `json:"payment_count"`
	LastPayment   *time.Time `json:"last_payment,omitempty"`
}

// NotificationKind описывает тип уведомления.
type NotificationKind string

const (
	NotificationKindCommission       NotificationKind = "commission_earned"
	NotificationKindPayout           NotificationKind = "payout_requested"
	NotificationKindWelcome          NotificationKind = "referrer_welcome"
	NotificationKindServiceCompleted NotificationKind = "service_completed"
)

// Notification описывает запись в журнале уведомлений. Доставку выполняет
// внешний процесс, сервис только регистрирует намерение отправки.
type Notification struct {
	ID         int64
	ReferrerID int64
	Kind       NotificationKind
	Subject    string
	Body       string
	Status     string
	Read       bool
	CreatedAt  time.Time
}

// Attribution описывает привязку посетителя к рефереру, по ссылке которого он
// пришёл на сайт. Хранится на стороне клиента в подписанной cookie.
type Attribution struct {
	ReferrerID int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	CapturedAt time.Time `json:"timestamp"`
}
