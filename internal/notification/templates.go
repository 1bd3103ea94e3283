// Package notification содержит шаблоны писем реферальной программы.
// Пакет только формирует контент, отправкой занимается внешний процесс.
package notification

import (
	"fmt"
	"time"
)

// Commission формирует письмо о начисленном вознаграждении за успешный реферал.
func Commission(referrerName, clientName string, amount float64) (subject, body string) {
	subject = "You earned a referral commission"
	body = fmt.Sprintf(`<html><body>
<h2>Congratulations, %s!</h2>
<p>Your referral %s has converted, and a commission of <strong>$%.2f</strong> has been credited to your account.</p>
<p>You can track your earnings and request a payout from your referrer dashboard.</p>
</body></html>`, referrerName, clientName, amount)
	return subject, body
}

// PayoutRequested формирует письмо-подтверждение заявки на выплату.
func PayoutRequested(referrerName string, amount float64, estimatedDelivery time.Time) (subject, body string) {
	subject = "Your payout request has been received"
	body = fmt.Sprintf(`<html><body>
<h2>Payout request received</h2>
<p>Hi %s, we received your payout request for <strong>$%.2f</strong>.</p>
<p>Estimated delivery: %s.</p>
</body></html>`, referrerName, amount, estimatedDelivery.Format("January 2, 2006"))
	return subject, body
}

// Welcome формирует приветственное письмо новому рефереру.
func Welcome(referrerName, code string) (subject, body string) {
	subject = "Welcome to the referral program"
	body = fmt.Sprintf(`<html><body>
<h2>Welcome aboard, %s!</h2>
<p>Your personal referral code is <strong>%s</strong>.</p>
<p>Share your link and earn a commission for every client who signs up through it.</p>
</body></html>`, referrerName, code)
	return subject, body
}

// ServiceCompleted формирует письмо о завершении услуги по рефералу.
func ServiceCompleted(clientName, serviceType string) (subject, body string) {
	subject = "Referred engagement completed"
	body = fmt.Sprintf(`<html><body>
<h2>Engagement completed</h2>
<p>The %s engagement for your referral %s has been completed.</p>
</body></html>`, serviceType, clientName)
	return subject, body
}
