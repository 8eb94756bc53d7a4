package domain

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Actor представляет инициатора запроса: авторизованного пользователя или анонима
type Actor struct {
	UserID string `json:"user_id,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// Anonymous — актор без сессии (невалидный или отсутствующий credential)
var Anonymous = Actor{}

func (a Actor) IsAuthenticated() bool {
	return a.UserID != ""
}
