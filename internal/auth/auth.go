package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"fotodrive/internal/domain"
)

var jwtSecret []byte

// Init задаёт секрет для проверки подписи сессионных JWT
func Init(secret string) {
	jwtSecret = []byte(secret)
}

// ResolveSession определяет актора запроса по заголовку Authorization.
// Отсутствующий или невалидный credential — это Anonymous, не ошибка.
func ResolveSession(r *http.Request) domain.Actor {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return domain.Anonymous
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return domain.Anonymous
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Anonymous
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.Anonymous
	}

	role := domain.RoleUser
	if rs, ok := claims["role"].(string); ok && rs != "" {
		role = domain.Role(rs)
	}

	return domain.Actor{UserID: sub, Role: role}
}

// RequireUser возвращает ID авторизованного пользователя или ошибку.
// Используется на эндпоинтах, доступных только владельцу.
func RequireUser(r *http.Request) (string, error) {
	actor := ResolveSession(r)
	if !actor.IsAuthenticated() {
		return "", fmt.Errorf("no valid session")
	}
	return actor.UserID, nil
}
