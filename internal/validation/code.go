// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const codeLength = 8

// IsValidReferralCode проверяет формат реферального кода: восемь символов из
// алфавита A-Z0-9.
func IsValidReferralCode(code string) bool {
	if len(code) != codeLength {
		return false
	}

	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}

	return true
}

// IsValidEmail выполняет минимальную структурную проверку адреса почты.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}

	domain := email[at+1:]
	if strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return false
	}

	return !strings.ContainsAny(email, " \t\r\n")
}
