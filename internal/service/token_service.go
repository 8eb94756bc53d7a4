package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fotodrive/internal/access"
	"fotodrive/internal/domain"
	"fotodrive/internal/repository"
)

// TokenService управляет токенами доступа: создание, блокировка PIN-кодом,
// активация и удаление. Все операции управления доступны только владельцу папки.
type TokenService struct {
	tokenRepo  *repository.TokenRepository
	folderRepo *repository.FolderRepository
}

func NewTokenService(
	tokenRepo *repository.TokenRepository,
	folderRepo *repository.FolderRepository,
) *TokenService {
	return &TokenService{
		tokenRepo:  tokenRepo,
		folderRepo: folderRepo,
	}
}

type CreateTokenParams struct {
	FolderID   int64
	Permission domain.TokenLevel
	Kind       domain.TokenKind
	Email      *string
	ExpiresIn  *time.Duration
	AllowMap   bool
	Pin        *string
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *TokenService) CreateToken(ctx context.Context, ownerID string, params CreateTokenParams) (*domain.AccessToken, error) {
	// Проверяем владельца папки
	folder, err := s.folderRepo.GetByID(ctx, params.FolderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, fmt.Errorf("access denied")
	}

	switch params.Permission {
	case domain.TokenLevelRead, domain.TokenLevelWrite, domain.TokenLevelAdmin:
	default:
		return nil, fmt.Errorf("invalid permission level: %s", params.Permission)
	}

	if params.Kind == "" {
		params.Kind = domain.TokenKindLink
	}
	if params.Kind == domain.TokenKindPerson && (params.Email == nil || *params.Email == "") {
		return nil, fmt.Errorf("email is required for person token")
	}

	expiresAt := time.Now().AddDate(0, domain.DefaultTokenLifetimeMonths, 0)
	if params.ExpiresIn != nil {
		expiresAt = time.Now().Add(*params.ExpiresIn)
	}

	token := &domain.AccessToken{
		ID:         uuid.New(),
		FolderID:   params.FolderID,
		Kind:       params.Kind,
		Email:      params.Email,
		Permission: params.Permission,
		ExpiresAt:  expiresAt,
		IsActive:   true,
		AllowMap:   params.AllowMap,
	}

	token.Token, err = generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if params.Pin != nil && *params.Pin != "" {
		hash, err := access.HashPin(*params.Pin)
		if err != nil {
			return nil, err
		}
		token.Locked = true
		token.PinCodeHash = &hash
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return token, nil
}

// CreateCompanionTokens создает пару токенов новой папки: READ и WRITE,
// оба на стандартный срок действия
func (s *TokenService) CreateCompanionTokens(ctx context.Context, folder *domain.Folder) ([]domain.AccessToken, error) {
	expiresAt := time.Now().AddDate(0, domain.DefaultTokenLifetimeMonths, 0)

	tokens := make([]domain.AccessToken, 0, 2)
	for _, level := range []domain.TokenLevel{domain.TokenLevelRead, domain.TokenLevelWrite} {
		token := domain.AccessToken{
			ID:         uuid.New(),
			FolderID:   folder.ID,
			Kind:       domain.TokenKindLink,
			Permission: level,
			ExpiresAt:  expiresAt,
			IsActive:   true,
		}

		var err error
		token.Token, err = generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}

		if err := s.tokenRepo.Create(ctx, &token); err != nil {
			return nil, fmt.Errorf("failed to create companion token: %w", err)
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

func (s *TokenService) ListFolderTokens(ctx context.Context, ownerID string, folderID int64) ([]domain.AccessToken, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, fmt.Errorf("access denied")
	}

	return s.tokenRepo.GetFolderTokens(ctx, folderID)
}

// ResolveToken возвращает токен по его строке — для определения папки,
// к которой относится шаринговая ссылка. Проверку доступа делает шлюз.
func (s *TokenService) ResolveToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	return s.tokenRepo.GetByToken(ctx, token)
}

func (s *TokenService) SetActive(ctx context.Context, ownerID string, tokenID uuid.UUID, active bool) error {
	return s.tokenRepo.SetActive(ctx, tokenID, ownerID, active)
}

// Lock блокирует токен новым PIN-кодом
func (s *TokenService) Lock(ctx context.Context, ownerID string, tokenID uuid.UUID, pin string) error {
	hash, err := access.HashPin(pin)
	if err != nil {
		return err
	}
	return s.tokenRepo.SetLocked(ctx, tokenID, ownerID, &hash)
}

func (s *TokenService) Unlock(ctx context.Context, ownerID string, tokenID uuid.UUID) error {
	return s.tokenRepo.SetLocked(ctx, tokenID, ownerID, nil)
}

func (s *TokenService) Delete(ctx context.Context, ownerID string, tokenID uuid.UUID) error {
	return s.tokenRepo.Delete(ctx, tokenID, ownerID)
}

// CleanupExpired удаляет просроченные токены, вызывается фоновой задачей
func (s *TokenService) CleanupExpired(ctx context.Context) error {
	return s.tokenRepo.DeleteExpired(ctx)
}
