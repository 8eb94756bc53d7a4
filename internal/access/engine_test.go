package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotodrive/internal/domain"
)

func makeToken(t *testing.T, mutate func(*domain.AccessToken)) domain.AccessToken {
	t.Helper()
	tok := domain.AccessToken{
		Token:      "abc",
		FolderID:   1,
		Kind:       domain.TokenKindLink,
		Permission: domain.TokenLevelRead,
		ExpiresAt:  time.Now().Add(time.Hour),
		IsActive:   true,
	}
	if mutate != nil {
		mutate(&tok)
	}
	return tok
}

func lockedToken(t *testing.T, pin string, mutate func(*domain.AccessToken)) domain.AccessToken {
	t.Helper()
	hash, err := HashPin(pin)
	require.NoError(t, err)
	return makeToken(t, func(tok *domain.AccessToken) {
		tok.Locked = true
		tok.PinCodeHash = &hash
		if mutate != nil {
			mutate(tok)
		}
	})
}

func TestDecide_OwnerBypass(t *testing.T) {
	owner := domain.Actor{UserID: "u1", Role: domain.RoleUser}

	// Владелец проходит при любом состоянии токенов, включая DELETE
	expired := makeToken(t, func(tok *domain.AccessToken) {
		tok.ExpiresAt = time.Now().Add(-time.Hour)
		tok.IsActive = false
	})
	locked := lockedToken(t, "1234", nil)
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{expired, locked}}

	for _, p := range []domain.Permission{
		domain.PermissionRead,
		domain.PermissionWrite,
		domain.PermissionDelete,
		domain.PermissionReadMap,
	} {
		t.Run(string(p), func(t *testing.T) {
			v := Decide(owner, res, p, "", "")
			assert.True(t, v.Allowed)
			assert.Equal(t, owner, v.Actor)
			assert.Nil(t, v.Token)
		})
	}
}

func TestDecide_DeleteIsOwnerOnly(t *testing.T) {
	admin := makeToken(t, func(tok *domain.AccessToken) {
		tok.Permission = domain.TokenLevelAdmin
	})
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{admin}}

	t.Run("anonymous with admin token", func(t *testing.T) {
		v := Decide(domain.Anonymous, res, domain.PermissionDelete, "abc", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyInsufficientPermission, v.Reason)
	})

	t.Run("authenticated non-owner with admin token", func(t *testing.T) {
		v := Decide(domain.Actor{UserID: "u2"}, res, domain.PermissionDelete, "abc", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyInsufficientPermission, v.Reason)
	})
}

func TestDecide_MissingToken(t *testing.T) {
	res := &Resource{OwnerID: "u1"}

	t.Run("anonymous", func(t *testing.T) {
		v := Decide(domain.Anonymous, res, domain.PermissionRead, "", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyUnauthenticated, v.Reason)
	})

	t.Run("authenticated non-owner", func(t *testing.T) {
		v := Decide(domain.Actor{UserID: "u2"}, res, domain.PermissionRead, "", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyNoToken, v.Reason)
	})
}

func TestDecide_InvalidToken(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.AccessToken)
		pin    string
	}{
		{name: "unknown token string", mutate: func(tok *domain.AccessToken) { tok.Token = "other" }},
		{name: "inactive", mutate: func(tok *domain.AccessToken) { tok.IsActive = false }},
		{name: "expired", mutate: func(tok *domain.AccessToken) { tok.ExpiresAt = time.Now().Add(-24 * time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := makeToken(t, tt.mutate)
			res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}
			v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "")
			assert.False(t, v.Allowed)
			assert.Equal(t, DenyInvalidToken, v.Reason)
		})
	}
}

func TestDecide_ExpiredTokenWithCorrectPin(t *testing.T) {
	// Просроченный токен не проходит даже с верным PIN
	tok := lockedToken(t, "1234", func(tok *domain.AccessToken) {
		tok.ExpiresAt = time.Now().Add(-time.Hour)
	})
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}

	v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "1234")
	assert.False(t, v.Allowed)
	assert.Equal(t, DenyInvalidToken, v.Reason)
}

func TestDecide_PinGate(t *testing.T) {
	// PIN проверяется до уровня доступа: даже ADMIN-токен с неверным PIN
	// отклоняется как invalid-pin, а не insufficient-permission
	tok := lockedToken(t, "1234", func(tok *domain.AccessToken) {
		tok.Permission = domain.TokenLevelAdmin
	})
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}

	t.Run("no pin", func(t *testing.T) {
		v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyPinRequired, v.Reason)
	})

	t.Run("wrong pin", func(t *testing.T) {
		v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "9999")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyInvalidPin, v.Reason)
	})

	t.Run("correct pin", func(t *testing.T) {
		v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "1234")
		assert.True(t, v.Allowed)
		require.NotNil(t, v.Token)
		assert.Equal(t, "abc", v.Token.Token)
	})

	t.Run("unlocked token ignores pin state", func(t *testing.T) {
		unlocked := makeToken(t, nil)
		res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{unlocked}}
		v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "")
		assert.True(t, v.Allowed)
	})
}

func TestDecide_PermissionLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     domain.TokenLevel
		requested domain.Permission
		allowed   bool
	}{
		{"read token allows read", domain.TokenLevelRead, domain.PermissionRead, true},
		{"read token denies write", domain.TokenLevelRead, domain.PermissionWrite, false},
		{"write token allows write", domain.TokenLevelWrite, domain.PermissionWrite, true},
		{"write token allows read", domain.TokenLevelWrite, domain.PermissionRead, true},
		{"admin token allows write", domain.TokenLevelAdmin, domain.PermissionWrite, true},
		{"admin token allows read", domain.TokenLevelAdmin, domain.PermissionRead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := makeToken(t, func(tok *domain.AccessToken) { tok.Permission = tt.level })
			res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}
			v := Decide(domain.Anonymous, res, tt.requested, "abc", "")
			assert.Equal(t, tt.allowed, v.Allowed)
			if !tt.allowed {
				assert.Equal(t, DenyInsufficientPermission, v.Reason)
			}
		})
	}
}

func TestDecide_WriteImpliesRead(t *testing.T) {
	// Монотонность: если WRITE разрешён, READ с теми же входами тоже разрешён
	tok := makeToken(t, func(tok *domain.AccessToken) { tok.Permission = domain.TokenLevelWrite })
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}

	write := Decide(domain.Anonymous, res, domain.PermissionWrite, "abc", "")
	require.True(t, write.Allowed)

	read := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "")
	assert.True(t, read.Allowed)
}

func TestDecide_MapAccess(t *testing.T) {
	t.Run("admin without allow_map denied", func(t *testing.T) {
		tok := makeToken(t, func(tok *domain.AccessToken) {
			tok.Permission = domain.TokenLevelAdmin
			tok.AllowMap = false
		})
		res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}
		v := Decide(domain.Anonymous, res, domain.PermissionReadMap, "abc", "")
		assert.False(t, v.Allowed)
		assert.Equal(t, DenyInsufficientPermission, v.Reason)
	})

	t.Run("read token with allow_map allowed", func(t *testing.T) {
		tok := makeToken(t, func(tok *domain.AccessToken) { tok.AllowMap = true })
		res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}
		v := Decide(domain.Anonymous, res, domain.PermissionReadMap, "abc", "")
		assert.True(t, v.Allowed)
	})
}

func TestDecide_PersonTokenSameEnforcement(t *testing.T) {
	// Персональный токен проверяется так же, как публичная ссылка:
	// email — только метаданные
	email := "guest@example.com"
	tok := makeToken(t, func(tok *domain.AccessToken) {
		tok.Kind = domain.TokenKindPerson
		tok.Email = &email
	})
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}

	v := Decide(domain.Anonymous, res, domain.PermissionRead, "abc", "")
	assert.True(t, v.Allowed)
}

func TestDecide_NilResourcePanics(t *testing.T) {
	assert.Panics(t, func() {
		Decide(domain.Anonymous, nil, domain.PermissionRead, "", "")
	})
}

func TestDecide_UnknownPermissionPanics(t *testing.T) {
	tok := makeToken(t, nil)
	res := &Resource{OwnerID: "u1", Tokens: []domain.AccessToken{tok}}
	assert.Panics(t, func() {
		Decide(domain.Anonymous, res, domain.Permission("move"), "abc", "")
	})
}
