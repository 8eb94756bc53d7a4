package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fotodrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (
            uuid, name, mime_type, size_bytes, folder_id, owner_id,
            description, latitude, longitude, taken_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        ) RETURNING created_at, updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		file.UUID,
		file.Name,
		file.MIMEType,
		file.SizeBytes,
		file.FolderID,
		file.OwnerID,
		file.Description,
		file.Latitude,
		file.Longitude,
		file.TakenAt,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
}

func (r *FileRepository) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	query := `SELECT * FROM files WHERE uuid = $1 AND deleted_at IS NULL`

	var file domain.File
	if err := r.db.GetContext(ctx, &file, query, fileUUID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("file not found")
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

func (r *FileRepository) Rename(ctx context.Context, fileUUID uuid.UUID, name string) error {
	query := `
        UPDATE files
        SET name = $1, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, name, fileUUID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("file not found")
	}

	return nil
}

func (r *FileRepository) Delete(ctx context.Context, fileUUID uuid.UUID, ownerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var folderID int64
	var sizeBytes int64
	err = tx.QueryRowContext(ctx,
		`DELETE FROM files WHERE uuid = $1 AND owner_id = $2 RETURNING folder_id, size_bytes`,
		fileUUID, ownerID,
	).Scan(&folderID, &sizeBytes)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("file not found or access denied")
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Корректируем счётчики папки
	_, err = tx.ExecContext(ctx,
		`UPDATE folders
         SET size_bytes = size_bytes - $1,
             files_count = files_count - 1,
             updated_at = CURRENT_TIMESTAMP
         WHERE id = $2`,
		sizeBytes, folderID)
	if err != nil {
		return fmt.Errorf("failed to update folder counters: %w", err)
	}

	return tx.Commit()
}

// AddToFolderCounters увеличивает счётчики папки после загрузки файла
func (r *FileRepository) AddToFolderCounters(ctx context.Context, folderID int64, sizeBytes int64) error {
	query := `
        UPDATE folders
        SET size_bytes = size_bytes + $1,
            files_count = files_count + 1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, sizeBytes, folderID)
	return err
}
