package service

import (
	"context"
	"fmt"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotodrive/internal/access"
	"fotodrive/internal/domain"
)

type fakeTokenStore struct {
	tokens     []domain.AccessToken
	increments map[uuid.UUID]int
	failList   bool
	failIncr   bool
}

func (f *fakeTokenStore) GetFolderTokens(ctx context.Context, folderID int64) ([]domain.AccessToken, error) {
	if f.failList {
		return nil, fmt.Errorf("connection refused")
	}
	return f.tokens, nil
}

func (f *fakeTokenStore) IncrementUses(ctx context.Context, tokenID uuid.UUID) error {
	if f.failIncr {
		return fmt.Errorf("connection refused")
	}
	if f.increments == nil {
		f.increments = make(map[uuid.UUID]int)
	}
	f.increments[tokenID]++
	return nil
}

type fakeFolderStore struct {
	folder *domain.Folder
	fail   bool
}

func (f *fakeFolderStore) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	if f.fail {
		return nil, fmt.Errorf("connection refused")
	}
	if f.folder == nil || f.folder.ID != id {
		return nil, fmt.Errorf("failed to get folder: not found")
	}
	return f.folder, nil
}

type fakeFileStore struct {
	file *domain.File
}

func (f *fakeFileStore) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	if f.file == nil || f.file.UUID != fileUUID {
		return nil, fmt.Errorf("file not found")
	}
	return f.file, nil
}

func testToken(value string, level domain.TokenLevel) domain.AccessToken {
	return domain.AccessToken{
		ID:         uuid.New(),
		Token:      value,
		FolderID:   1,
		Kind:       domain.TokenKindLink,
		Permission: level,
		ExpiresAt:  time.Now().Add(time.Hour),
		IsActive:   true,
	}
}

func newTestGate(tokens *fakeTokenStore, folder *domain.Folder, file *domain.File) *GateService {
	return NewGateService(tokens, &fakeFolderStore{folder: folder}, &fakeFileStore{file: file})
}

func TestEnforceFolder_OwnerBypass(t *testing.T) {
	tokens := &fakeTokenStore{failList: true} // владелец не должен трогать хранилище токенов
	folder := &domain.Folder{ID: 1, OwnerID: "u1"}
	gate := newTestGate(tokens, folder, nil)

	loaded, verdict, err := gate.EnforceFolder(
		context.Background(),
		domain.Actor{UserID: "u1"},
		1,
		domain.PermissionDelete,
		ShareCredentials{},
	)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, folder.ID, loaded.ID)
}

func TestEnforceFolder_TokenAccessCountsUse(t *testing.T) {
	tok := testToken("abc", domain.TokenLevelRead)
	tokens := &fakeTokenStore{tokens: []domain.AccessToken{tok}}
	gate := newTestGate(tokens, &domain.Folder{ID: 1, OwnerID: "u1"}, nil)

	_, verdict, err := gate.EnforceFolder(
		context.Background(),
		domain.Anonymous,
		1,
		domain.PermissionRead,
		ShareCredentials{Token: "abc"},
	)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, 1, tokens.increments[tok.ID])
}

func TestEnforceFolder_DenyDoesNotCountUse(t *testing.T) {
	tok := testToken("abc", domain.TokenLevelRead)
	tokens := &fakeTokenStore{tokens: []domain.AccessToken{tok}}
	gate := newTestGate(tokens, &domain.Folder{ID: 1, OwnerID: "u1"}, nil)

	_, verdict, err := gate.EnforceFolder(
		context.Background(),
		domain.Anonymous,
		1,
		domain.PermissionWrite,
		ShareCredentials{Token: "abc"},
	)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, access.DenyInsufficientPermission, verdict.Reason)
	assert.Zero(t, tokens.increments[tok.ID])
}

func TestEnforceFolder_UsesLedgerIdempotency(t *testing.T) {
	// Два вызова шлюза в рамках одного запроса учитывают uses один раз
	tok := testToken("abc", domain.TokenLevelRead)
	tokens := &fakeTokenStore{tokens: []domain.AccessToken{tok}}
	gate := newTestGate(tokens, &domain.Folder{ID: 1, OwnerID: "u1"}, nil)

	ctx := NewUsesLedgerContext(context.Background())
	creds := ShareCredentials{Token: "abc"}

	for i := 0; i < 2; i++ {
		_, verdict, err := gate.EnforceFolder(ctx, domain.Anonymous, 1, domain.PermissionRead, creds)
		require.NoError(t, err)
		require.True(t, verdict.Allowed)
	}

	assert.Equal(t, 1, tokens.increments[tok.ID])
}

func TestEnforceFolder_SeparateRequestsCountSeparately(t *testing.T) {
	tok := testToken("abc", domain.TokenLevelRead)
	tokens := &fakeTokenStore{tokens: []domain.AccessToken{tok}}
	gate := newTestGate(tokens, &domain.Folder{ID: 1, OwnerID: "u1"}, nil)

	creds := ShareCredentials{Token: "abc"}
	for i := 0; i < 2; i++ {
		ctx := NewUsesLedgerContext(context.Background())
		_, verdict, err := gate.EnforceFolder(ctx, domain.Anonymous, 1, domain.PermissionRead, creds)
		require.NoError(t, err)
		require.True(t, verdict.Allowed)
	}

	assert.Equal(t, 2, tokens.increments[tok.ID])
}

func TestEnforceFolder_InfrastructureErrorIsNotDeny(t *testing.T) {
	t.Run("folder store down", func(t *testing.T) {
		gate := NewGateService(&fakeTokenStore{}, &fakeFolderStore{fail: true}, &fakeFileStore{})
		_, verdict, err := gate.EnforceFolder(
			context.Background(), domain.Anonymous, 1, domain.PermissionRead, ShareCredentials{Token: "abc"})
		require.Error(t, err)
		assert.False(t, verdict.Allowed)
		assert.Empty(t, verdict.Reason) // не policy-отказ
	})

	t.Run("token store down", func(t *testing.T) {
		gate := newTestGate(&fakeTokenStore{failList: true}, &domain.Folder{ID: 1, OwnerID: "u1"}, nil)
		_, verdict, err := gate.EnforceFolder(
			context.Background(), domain.Anonymous, 1, domain.PermissionRead, ShareCredentials{Token: "abc"})
		require.Error(t, err)
		assert.NotEqual(t, access.DenyInvalidToken, verdict.Reason)
	})
}

func TestEnforceFile_UsesParentFolderTokens(t *testing.T) {
	tok := testToken("abc", domain.TokenLevelRead)
	tokens := &fakeTokenStore{tokens: []domain.AccessToken{tok}}
	file := &domain.File{UUID: uuid.New(), FolderID: 1, OwnerID: "u1"}
	gate := newTestGate(tokens, nil, file)

	loaded, verdict, err := gate.EnforceFile(
		context.Background(),
		domain.Anonymous,
		file.UUID,
		domain.PermissionRead,
		ShareCredentials{Token: "abc"},
	)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, file.UUID, loaded.UUID)
	assert.Equal(t, 1, tokens.increments[tok.ID])
}

func TestEnforceFile_DeleteOwnerOnly(t *testing.T) {
	tok := testToken("abc", domain.TokenLevelAdmin)
	tokens := &fakeTokenStore{tokens: []domain.AccessToken{tok}}
	file := &domain.File{UUID: uuid.New(), FolderID: 1, OwnerID: "u1"}
	gate := newTestGate(tokens, nil, file)

	_, verdict, err := gate.EnforceFile(
		context.Background(), domain.Anonymous, file.UUID, domain.PermissionDelete, ShareCredentials{Token: "abc"})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, access.DenyInsufficientPermission, verdict.Reason)
}

func TestShareCredentialsFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/folders/1?share=abc&h=1234&t=p", nil)
	creds := ShareCredentialsFromRequest(r)
	assert.Equal(t, "abc", creds.Token)
	assert.Equal(t, "1234", creds.Pin)
	assert.Equal(t, domain.TokenKindPerson, creds.Kind)

	r = httptest.NewRequest("GET", "/v1/folders/1?share="+url.QueryEscape("x y"), nil)
	creds = ShareCredentialsFromRequest(r)
	assert.Equal(t, "x y", creds.Token)
	assert.Equal(t, domain.TokenKindLink, creds.Kind)
}

func TestWriteDeny(t *testing.T) {
	tests := []struct {
		reason access.DenyReason
		status int
	}{
		{access.DenyUnauthenticated, 401},
		{access.DenyPinRequired, 401},
		{access.DenyInvalidPin, 403},
		{access.DenyInvalidToken, 403},
		{access.DenyNoToken, 403},
		{access.DenyInsufficientPermission, 403},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteDeny(w, access.Deny(tt.reason))
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.reason), w.Body.String())
		})
	}
}
