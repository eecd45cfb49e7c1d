package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"tradehook/pkg/crypto"
)

type contextKey int

const (
	userIDKey contextKey = iota
	requestIDKey
)

// WithUserID кладет ID пользователя в context запроса
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom возвращает ID пользователя, установленный Auth
func UserIDFrom(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok && id > 0
}

// Auth - middleware аутентификации пользователя
//
// Назначение:
// Сессии и логин обслуживает upstream (прокси или основной фреймворк).
// Он проставляет ID пользователя в заголовок header, middleware
// переносит его в context запроса.
//
// Ответы:
// - 401 Unauthorized: заголовка нет или он не положительное число
//
// Использование:
//
//	api := router.PathPrefix("/api").Subrouter()
//	api.Use(middleware.Auth("X-User-ID"))
func Auth(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := cast.ToIntE(strings.TrimSpace(r.Header.Get(header)))
			if err != nil || userID <= 0 {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// AdminAuth - middleware для административных endpoints
//
// Назначение:
// Защищает /admin/* и /webhook-stream HTTP Basic аутентификацией.
// Пароль хранится только как bcrypt хэш (ADMIN_PASSWORD_HASH).
//
// Конфигурация:
// - username, passwordHash: из config.Security
// - если они пусты, доступ открыт только в development, иначе 403
//
// Безопасность:
// - имя пользователя сравнивается за постоянное время
// - пароль проверяется bcrypt
func AdminAuth(username, passwordHash string, development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username == "" || passwordHash == "" {
				if development {
					next.ServeHTTP(w, r)
					return
				}
				writeJSONError(w, http.StatusForbidden, "admin endpoints disabled")
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="tradehook admin"`)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			if !userMatch || crypto.VerifyPassword(pass, passwordHash) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="tradehook admin"`)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError - минимальный JSON ответ с ошибкой
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
