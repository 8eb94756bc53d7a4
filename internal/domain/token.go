package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission — запрашиваемое разрешение на операцию
type Permission string

// TokenLevel — уровень доступа, закреплённый за токеном (read < write < admin)
type TokenLevel string

// TokenKind — вид токена: публичная ссылка или персональное приглашение
type TokenKind string

const (
	PermissionRead    Permission = "read"
	PermissionWrite   Permission = "write"
	PermissionDelete  Permission = "delete"
	PermissionReadMap Permission = "read_map"

	TokenLevelRead  TokenLevel = "read"
	TokenLevelWrite TokenLevel = "write"
	TokenLevelAdmin TokenLevel = "admin"

	TokenKindLink   TokenKind = "link"
	TokenKindPerson TokenKind = "person"
)

// DefaultTokenLifetimeMonths — срок действия токенов, создаваемых вместе с папкой
const DefaultTokenLifetimeMonths = 8

// CoversWrite проверяет, достаточен ли уровень токена для записи
func (l TokenLevel) CoversWrite() bool {
	return l == TokenLevelWrite || l == TokenLevelAdmin
}

// AccessToken — bearer-токен доступа к папке. Токен не привязан к личности
// (кроме Email у персональных токенов, который используется только в UI),
// предъявитель строки токена получает закреплённый за ней уровень доступа.
type AccessToken struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Token       string     `json:"token" db:"token"`
	FolderID    int64      `json:"folder_id" db:"folder_id"`
	Kind        TokenKind  `json:"kind" db:"kind"`
	Email       *string    `json:"email,omitempty" db:"email"`
	Permission  TokenLevel `json:"permission" db:"permission"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	Locked      bool       `json:"locked" db:"locked"`
	PinCodeHash *string    `json:"-" db:"pin_code_hash"`
	AllowMap    bool       `json:"allow_map" db:"allow_map"`
	Uses        int64      `json:"uses" db:"uses"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
