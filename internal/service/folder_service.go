package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fotodrive/internal/domain"
	"fotodrive/internal/repository"
	"fotodrive/internal/service/s3"
)

type FolderService struct {
	folderRepo   *repository.FolderRepository
	tokenService *TokenService
	s3Client     s3.Storage
}

func NewFolderService(
	folderRepo *repository.FolderRepository,
	tokenService *TokenService,
	s3Client s3.Storage,
) *FolderService {
	return &FolderService{
		folderRepo:   folderRepo,
		tokenService: tokenService,
		s3Client:     s3Client,
	}
}

// CreateFolder создает альбом вместе с парой токенов-компаньонов (READ и WRITE)
func (s *FolderService) CreateFolder(ctx context.Context, name string, description *string, parentID *int64, ownerID string) (*domain.Folder, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}

	folder := &domain.Folder{
		Name:        name,
		OwnerID:     ownerID,
		ParentID:    parentID,
		Description: description,
	}

	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	if _, err := s.tokenService.CreateCompanionTokens(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create companion tokens: %w", err)
	}

	return folder, nil
}

func (s *FolderService) GetContent(ctx context.Context, folderID int64) (*domain.FolderContent, error) {
	return s.folderRepo.GetContent(ctx, folderID)
}

func (s *FolderService) Rename(ctx context.Context, folderID int64, ownerID string, name string) error {
	if name == "" {
		return fmt.Errorf("folder name is required")
	}
	return s.folderRepo.Rename(ctx, folderID, ownerID, name)
}

func (s *FolderService) UpdateMeta(ctx context.Context, folderID int64, ownerID string, description *string, coverFileID *uuid.UUID) error {
	return s.folderRepo.UpdateMeta(ctx, folderID, ownerID, description, coverFileID)
}

// Delete удаляет альбом с содержимым: строки в БД каскадно, затем объекты
// в blob-хранилище по префиксам папок и превью по UUID файлов
func (s *FolderService) Delete(ctx context.Context, folderID int64, ownerID string) error {
	folderIDs, fileUUIDs, err := s.folderRepo.Delete(ctx, folderID, ownerID)
	if err != nil {
		return err
	}

	for _, id := range folderIDs {
		prefix := fmt.Sprintf("files/%d/", id)
		if err := s.s3Client.DeleteByPrefix(ctx, prefix); err != nil {
			// Строки уже удалены, осиротевшие объекты не влияют на доступ
			log.Printf("[FolderService] Failed to delete objects with prefix %s: %v", prefix, err)
		}
	}

	for _, fileUUID := range fileUUIDs {
		if err := s.s3Client.DeleteObject(previewKey(fileUUID)); err != nil {
			log.Printf("[FolderService] Failed to delete preview for %s: %v", fileUUID, err)
		}
	}

	return nil
}

func (s *FolderService) GetStructure(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	return s.folderRepo.GetStructure(ctx, ownerID)
}

// GetMapPoints возвращает геоточки файлов альбома для карты
func (s *FolderService) GetMapPoints(ctx context.Context, folderID int64) ([]domain.MapPoint, error) {
	return s.folderRepo.GetMapPoints(ctx, folderID)
}
