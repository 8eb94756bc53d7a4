package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fotodrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var path string
	var level int

	if folder.ParentID == nil {
		path = "/"
		level = 0
	} else {
		// Получаем путь и уровень родительской папки
		err := tx.QueryRowContext(ctx,
			"SELECT path, level FROM folders WHERE id = $1 AND deleted_at IS NULL",
			folder.ParentID,
		).Scan(&path, &level)
		if err != nil {
			return fmt.Errorf("failed to get parent folder: %w", err)
		}

		if path == "/" {
			path = fmt.Sprintf("/%s", folder.Name)
		} else {
			path = fmt.Sprintf("%s/%s", path, folder.Name)
		}
		level = level + 1
	}

	query := `
        INSERT INTO folders (name, owner_id, parent_id, path, level, description)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		folder.Name,
		folder.OwnerID,
		folder.ParentID,
		path,
		level,
		folder.Description,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	folder.Path = path
	folder.Level = level

	return tx.Commit()
}

func (r *FolderRepository) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	query := `SELECT * FROM folders WHERE id = $1 AND deleted_at IS NULL`

	var folder domain.Folder
	if err := r.db.GetContext(ctx, &folder, query, id); err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

// GetContent возвращает папку вместе с файлами и подпапками
func (r *FolderRepository) GetContent(ctx context.Context, id int64) (*domain.FolderContent, error) {
	folder, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	content := &domain.FolderContent{Folder: *folder}

	err = r.db.SelectContext(ctx, &content.Files,
		`SELECT * FROM files
         WHERE folder_id = $1 AND deleted_at IS NULL
         ORDER BY name`,
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}

	err = r.db.SelectContext(ctx, &content.Subfolders,
		`SELECT * FROM folders
         WHERE parent_id = $1 AND deleted_at IS NULL
         ORDER BY name`,
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subfolders: %w", err)
	}

	return content, nil
}

func (r *FolderRepository) Rename(ctx context.Context, id int64, ownerID string, name string) error {
	query := `
        UPDATE folders
        SET name = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND owner_id = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, name, id, ownerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("folder not found or access denied")
	}

	return nil
}

// UpdateMeta обновляет описание и обложку альбома
func (r *FolderRepository) UpdateMeta(ctx context.Context, id int64, ownerID string, description *string, coverFileID *uuid.UUID) error {
	query := `
        UPDATE folders
        SET description = $1, cover_file_id = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $3 AND owner_id = $4 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, description, coverFileID, id, ownerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("folder not found or access denied")
	}

	return nil
}

// Delete удаляет папку со всей иерархией: подпапки, файлы, токены.
// Возвращает ID удалённых папок и UUID файлов для очистки blob-хранилища.
func (r *FolderRepository) Delete(ctx context.Context, id int64, ownerID string) ([]int64, []uuid.UUID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var folderIDs []int64
	err = tx.SelectContext(ctx, &folderIDs, `
        WITH RECURSIVE subfolder AS (
            SELECT id FROM folders
            WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL

            UNION ALL

            SELECT f.id FROM folders f
            INNER JOIN subfolder s ON f.parent_id = s.id
            WHERE f.deleted_at IS NULL
        )
        SELECT id FROM subfolder`,
		id, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to collect folder tree: %w", err)
	}
	if len(folderIDs) == 0 {
		return nil, nil, fmt.Errorf("folder not found or access denied")
	}

	query, args, err := sqlx.In(`DELETE FROM files WHERE folder_id IN (?) RETURNING uuid`, folderIDs)
	if err != nil {
		return nil, nil, err
	}
	query = tx.Rebind(query)

	var fileUUIDs []uuid.UUID
	if err := tx.SelectContext(ctx, &fileUUIDs, query, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to delete files: %w", err)
	}

	query, args, err = sqlx.In(`DELETE FROM access_tokens WHERE folder_id IN (?)`, folderIDs)
	if err != nil {
		return nil, nil, err
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to delete tokens: %w", err)
	}

	query, args, err = sqlx.In(`DELETE FROM folders WHERE id IN (?)`, folderIDs)
	if err != nil {
		return nil, nil, err
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, nil, fmt.Errorf("failed to delete folders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	return folderIDs, fileUUIDs, nil
}

// GetStructure возвращает всё дерево папок пользователя
func (r *FolderRepository) GetStructure(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	query := `
        SELECT * FROM folders
        WHERE owner_id = $1 AND deleted_at IS NULL
        ORDER BY path`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get folder structure: %w", err)
	}

	return folders, nil
}

// GetMapPoints возвращает геоточки файлов папки для карты альбома
func (r *FolderRepository) GetMapPoints(ctx context.Context, folderID int64) ([]domain.MapPoint, error) {
	query := `
        SELECT uuid, name, latitude, longitude, taken_at
        FROM files
        WHERE folder_id = $1
        AND deleted_at IS NULL
        AND latitude IS NOT NULL
        AND longitude IS NOT NULL
        ORDER BY taken_at NULLS LAST, name`

	var points []domain.MapPoint
	if err := r.db.SelectContext(ctx, &points, query, folderID); err != nil {
		return nil, fmt.Errorf("failed to get map points: %w", err)
	}

	return points, nil
}
