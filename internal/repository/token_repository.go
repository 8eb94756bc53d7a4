package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fotodrive/internal/domain"
)

type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *domain.AccessToken) error {
	query := `
        INSERT INTO access_tokens (
            id, token, folder_id, kind, email, permission,
            expires_at, is_active, locked, pin_code_hash, allow_map, uses
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0
        ) RETURNING created_at, updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		token.ID,
		token.Token,
		token.FolderID,
		token.Kind,
		token.Email,
		token.Permission,
		token.ExpiresAt,
		token.IsActive,
		token.Locked,
		token.PinCodeHash,
		token.AllowMap,
	).Scan(&token.CreatedAt, &token.UpdatedAt)
}

func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	query := `SELECT * FROM access_tokens WHERE token = $1`

	var t domain.AccessToken
	if err := r.db.GetContext(ctx, &t, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("token not found")
		}
		return nil, err
	}

	return &t, nil
}

// GetFolderTokens возвращает все токены папки — и публичные ссылки,
// и персональные приглашения. Фильтрация по активности и сроку действия
// здесь не делается: это решает движок доступа, а не хранилище.
func (r *TokenRepository) GetFolderTokens(ctx context.Context, folderID int64) ([]domain.AccessToken, error) {
	query := `SELECT * FROM access_tokens WHERE folder_id = $1 ORDER BY created_at`

	var tokens []domain.AccessToken
	if err := r.db.SelectContext(ctx, &tokens, query, folderID); err != nil {
		return nil, fmt.Errorf("failed to get folder tokens: %w", err)
	}

	return tokens, nil
}

// IncrementUses атомарно увеличивает счётчик использований токена.
// Инкремент выполняется в SQL, чтобы конкурентные запросы не теряли обновления.
func (r *TokenRepository) IncrementUses(ctx context.Context, tokenID uuid.UUID) error {
	query := `UPDATE access_tokens SET uses = uses + 1 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("failed to increment token uses: %w", err)
	}

	return nil
}

func (r *TokenRepository) SetActive(ctx context.Context, tokenID uuid.UUID, ownerID string, active bool) error {
	query := `
        UPDATE access_tokens SET is_active = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
        AND folder_id IN (SELECT id FROM folders WHERE owner_id = $3)`

	return r.execOwned(ctx, query, active, tokenID, ownerID)
}

// SetLocked блокирует токен с новым PIN-хэшем или снимает блокировку (nil)
func (r *TokenRepository) SetLocked(ctx context.Context, tokenID uuid.UUID, ownerID string, pinHash *string) error {
	query := `
        UPDATE access_tokens
        SET locked = $1, pin_code_hash = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $3
        AND folder_id IN (SELECT id FROM folders WHERE owner_id = $4)`

	return r.execOwned(ctx, query, pinHash != nil, pinHash, tokenID, ownerID)
}

func (r *TokenRepository) Delete(ctx context.Context, tokenID uuid.UUID, ownerID string) error {
	query := `
        DELETE FROM access_tokens
        WHERE id = $1
        AND folder_id IN (SELECT id FROM folders WHERE owner_id = $2)`

	return r.execOwned(ctx, query, tokenID, ownerID)
}

func (r *TokenRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM access_tokens WHERE expires_at < CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *TokenRepository) execOwned(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return fmt.Errorf("token not found or access denied")
	}

	return nil
}
