// Package attribution реализует захват и хранение реферальной атрибуции
// посетителя. Атрибуция действует по принципу первого касания: однажды
// сохранённая запись не перезаписывается кодом из более поздних визитов.
package attribution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkazancev/referral-system/internal/model"
)

const (
	attributionCookieName = "referral_attribution"
	attributionCookieTTL  = 90 * 24 * time.Hour
)

// Ключи query-параметров, в которых принимается реферальный код.
var codeParams = []string{"ref", "referrer"}

// ErrNoAttribution возвращается, если запись атрибуции отсутствует.
var ErrNoAttribution = errors.New("no attribution record")

// Store описывает хранилище записи атрибуции. Интерфейс позволяет заменить
// механизм хранения (cookie, серверная сессия) без изменения вызывающего кода.
type Store interface {
	Get(r *http.Request) (*model.Attribution, error)
	Set(w http.ResponseWriter, attr *model.Attribution) error
	Clear(w http.ResponseWriter)
}

// CookieStore хранит запись атрибуции в подписанной cookie.
type CookieStore struct {
	secretKey []byte
}

// NewCookieStore создаёт хранилище атрибуции с указанным секретным ключом.
func NewCookieStore(secret string) *CookieStore {
	return &CookieStore{secretKey: []byte(secret)}
}

// Get возвращает запись атрибуции из cookie запроса.
func (s *CookieStore) Get(r *http.Request) (*model.Attribution, error) {
	cookie, err := r.Cookie(attributionCookieName)
	if err != nil {
		return nil, ErrNoAttribution
	}

	parts := strings.Split(cookie.Value, ".")
	if len(parts) != 2 {
		return nil, ErrNoAttribution
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrNoAttribution
	}

	if !hmac.Equal([]byte(parts[1]), []byte(s.sign(payload))) {
		return nil, ErrNoAttribution
	}

	var attr model.Attribution
	if err := json.Unmarshal(payload, &attr); err != nil {
		return nil, ErrNoAttribution
	}

	return &attr, nil
}

// Set сохраняет запись атрибуции в cookie ответа.
func (s *CookieStore) Set(w http.ResponseWriter, attr *model.Attribution) error {
	payload, err := json.Marshal(attr)
	if err != nil {
		return err
	}

	value := base64.RawURLEncoding.EncodeToString(payload) + "." + s.sign(payload)

	http.SetCookie(w, &http.Cookie{
		Name:     attributionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(attributionCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Clear удаляет cookie атрибуции.
func (s *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   attributionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func (s *CookieStore) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Resolver проверяет реферальный код по справочнику рефереров.
type Resolver interface {
	ResolveAttribution(ctx context.Context, code string) (*model.Attribution, error)
}

// Capture возвращает middleware, захватывающий реферальный код из
// query-параметров ?ref= или ?referrer=. Код проверяется по справочнику,
// принятая атрибуция сохраняется в хранилище, после чего параметры убираются
// из URL редиректом. Ошибки разрешения кода не показываются посетителю —
// запрос продолжается без атрибуции.
func Capture(store Store, resolver Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code, found := codeFromQuery(r)
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			// Первое касание: существующая запись имеет приоритет над
			// кодом из URL.
			if existing, err := store.Get(r); err == nil && existing != nil {
				redirectWithoutCode(w, r)
				return
			}

			attr, err := resolver.ResolveAttribution(r.Context(), code)
			if err != nil {
				logger.Info("attribution code rejected",
					zap.String("code", code), zap.Error(err))
				redirectWithoutCode(w, r)
				return
			}

			if err := store.Set(w, attr); err != nil {
				logger.Warn("store attribution", zap.Error(err))
			}

			redirectWithoutCode(w, r)
		})
	}
}

func codeFromQuery(r *http.Request) (string, bool) {
	query := r.URL.Query()
	for _, param := range codeParams {
		if code := strings.TrimSpace(query.Get(param)); code != "" {
			return code, true
		}
	}
	return "", false
}

func redirectWithoutCode(w http.ResponseWriter, r *http.Request) {
	u := *r.URL
	query := u.Query()
	for _, param := range codeParams {
		query.Del(param)
	}
	u.RawQuery = query.Encode()

	http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
}
