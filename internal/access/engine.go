package access

import (
	"fmt"
	"time"

	"fotodrive/internal/domain"
)

// DenyReason — машиночитаемая причина отказа, по ней UI выбирает,
// показать ли форму ввода PIN или страницу "ссылка недействительна"
type DenyReason string

const (
	DenyUnauthenticated        DenyReason = "unauthenticated"
	DenyNoToken                DenyReason = "no-token"
	DenyInvalidToken           DenyReason = "invalid-token"
	DenyPinRequired            DenyReason = "pin-required"
	DenyInvalidPin             DenyReason = "invalid-pin"
	DenyInsufficientPermission DenyReason = "insufficient-permission"
)

// Verdict — результат проверки доступа
type Verdict struct {
	Allowed bool
	Actor   domain.Actor
	Reason  DenyReason
	// Token — совпавший токен при доступе по ссылке, nil при owner bypass.
	// Используется вызывающей стороной для учёта uses.
	Token *domain.AccessToken
}

func Allow(actor domain.Actor, token *domain.AccessToken) Verdict {
	return Verdict{Allowed: true, Actor: actor, Token: token}
}

func Deny(reason DenyReason) Verdict {
	return Verdict{Reason: reason}
}

// Resource — цель проверки: владелец и токены папки. Для файла сюда
// попадают токены родительской папки, собственных токенов у файла нет.
type Resource struct {
	OwnerID string
	Tokens  []domain.AccessToken
}

// Decide вычисляет вердикт доступа. Чистая функция без I/O и состояния,
// безопасна для конкурентного вызова. Порядок проверок существенен:
// owner bypass идёт до поиска токена (владельцу токен не нужен),
// проверка PIN — до проверки уровня доступа (без верного PIN
// заблокированный токен не даёт даже чтения).
func Decide(actor domain.Actor, res *Resource, requested domain.Permission, presentedToken, pinProof string) Verdict {
	if res == nil {
		panic("access: nil resource")
	}

	// 1. Удаление — только владелец, токены удаление не дают никогда
	if requested == domain.PermissionDelete {
		if actor.IsAuthenticated() && actor.UserID == res.OwnerID {
			return Allow(actor, nil)
		}
		return Deny(DenyInsufficientPermission)
	}

	// 2. Owner bypass: владелец получает полный доступ без токена и PIN
	if actor.IsAuthenticated() && actor.UserID == res.OwnerID {
		return Allow(actor, nil)
	}

	// 3. Токен не предъявлен
	if presentedToken == "" {
		if !actor.IsAuthenticated() {
			return Deny(DenyUnauthenticated)
		}
		return Deny(DenyNoToken)
	}

	// 4. Ищем токен среди токенов папки
	var token *domain.AccessToken
	for i := range res.Tokens {
		if res.Tokens[i].Token == presentedToken {
			token = &res.Tokens[i]
			break
		}
	}
	if token == nil || !token.IsActive || token.ExpiresAt.Before(time.Now()) {
		return Deny(DenyInvalidToken)
	}

	// 5. Заблокированный токен требует верный PIN до любой проверки уровня
	if token.Locked && token.PinCodeHash != nil {
		if pinProof == "" {
			return Deny(DenyPinRequired)
		}
		if !VerifyPin(*token.PinCodeHash, pinProof) {
			return Deny(DenyInvalidPin)
		}
	}

	// 6. Проверка уровня доступа
	switch requested {
	case domain.PermissionReadMap:
		// allow_map — независимый флаг, ADMIN его не подразумевает
		if token.AllowMap {
			return Allow(actor, token)
		}
		return Deny(DenyInsufficientPermission)

	case domain.PermissionRead:
		return Allow(actor, token)

	case domain.PermissionWrite:
		if token.Permission.CoversWrite() {
			return Allow(actor, token)
		}
		return Deny(DenyInsufficientPermission)
	}

	panic(fmt.Sprintf("access: unknown permission %q", requested))
}
