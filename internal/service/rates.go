package service

import (
	"math"

	"github.com/mkazancev/referral-system/internal/model"
)

// MinimumPayoutCents — минимальная сумма заявки на выплату.
const MinimumPayoutCents int64 = 50 * 100

// baseRewardCents — базовое вознаграждение за успешный реферал до применения
// множителя услуги.
const baseRewardCents int64 = 50 * 100

// Множители вознаграждения за успешный реферал по видам услуг. Таблица
// независима от комиссионных ставок и настраивается отдельно.
var rewardMultipliers = map[model.ServiceType]float64{
	model.ServiceTypeConsulting: 1.5,
	model.ServiceTypeAssessment: 1.2,
	model.ServiceTypeForensics:  2.0,
	model.ServiceTypeTraining:   1.0,
	model.ServiceTypeCompliance: 1.8,
}

const defaultRewardMultiplier = 1.0

// Комиссионные ставки от стоимости проданной услуги.
var commissionRates = map[model.ServiceType]float64{
	model.ServiceTypeConsulting: 0.15,
	model.ServiceTypeAssessment: 0.12,
	model.ServiceTypeForensics:  0.10,
	model.ServiceTypeTraining:   0.08,
	model.ServiceTypeCompliance: 0.12,
}

const defaultCommissionRate = 0.10

// RewardCents возвращает вознаграждение за успешный реферал в копейках.
func RewardCents(serviceType model.ServiceType) int64 {
	multiplier, ok := rewardMultipliers[serviceType]
	if !ok {
		multiplier = defaultRewardMultiplier
	}
	return int64(math.Round(float64(baseRewardCents) * multiplier))
}

// CommissionCents возвращает комиссию с проданной услуги в копейках.
func CommissionCents(serviceAmountCents int64, serviceType model.ServiceType) int64 {
	rate, ok := commissionRates[serviceType]
	if !ok {
		rate = defaultCommissionRate
	}
	return int64(math.Round(float64(serviceAmountCents) * rate))
}

// CommissionRate возвращает комиссионную ставку для вида услуги.
func CommissionRate(serviceType model.ServiceType) float64 {
	rate, ok := commissionRates[serviceType]
	if !ok {
		rate = defaultCommissionRate
	}
	return rate
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
