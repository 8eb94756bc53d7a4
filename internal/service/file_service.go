package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fotodrive/internal/domain"
	"fotodrive/internal/repository"
	"fotodrive/internal/service/s3"
)

type FileService struct {
	fileRepo *repository.FileRepository
	s3Client s3.Storage
}

func NewFileService(
	fileRepo *repository.FileRepository,
	s3Client s3.Storage,
) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		s3Client: s3Client,
	}
}

func objectKey(file *domain.File) string {
	return fmt.Sprintf("files/%d/%s", file.FolderID, file.UUID)
}

func previewKey(fileUUID uuid.UUID) string {
	return fmt.Sprintf("previews/%s", fileUUID)
}

// Upload сохраняет файл в blob-хранилище и создает запись в БД.
// Проверка права записи в папку выполняется шлюзом до вызова.
func (s *FileService) Upload(ctx context.Context, upload *domain.FileUpload) (*domain.File, error) {
	if upload.Name == "" || len(upload.FileData) == 0 {
		return nil, fmt.Errorf("file name and data are required")
	}

	file := &domain.File{
		UUID:      uuid.New(),
		Name:      upload.Name,
		MIMEType:  upload.MIMEType,
		SizeBytes: upload.Size,
		FolderID:  upload.FolderID,
		OwnerID:   upload.OwnerID,
		Latitude:  upload.Latitude,
		Longitude: upload.Longitude,
		TakenAt:   upload.TakenAt,
	}

	if err := s.s3Client.UploadBytes(objectKey(file), upload.FileData); err != nil {
		return nil, fmt.Errorf("failed to upload file data: %w", err)
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		// Откатываем загрузку, чтобы не копить осиротевшие объекты
		if delErr := s.s3Client.DeleteObject(objectKey(file)); delErr != nil {
			log.Printf("[FileService] Failed to rollback upload for %s: %v", file.UUID, delErr)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	if err := s.fileRepo.AddToFolderCounters(ctx, file.FolderID, file.SizeBytes); err != nil {
		log.Printf("[FileService] Failed to update folder counters: %v", err)
	}

	return file, nil
}

func (s *FileService) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	return s.fileRepo.GetByUUID(ctx, fileUUID)
}

// GetFileData возвращает поток данных файла из blob-хранилища
func (s *FileService) GetFileData(ctx context.Context, file *domain.File) (s3.S3Object, error) {
	return s.s3Client.GetObject(ctx, objectKey(file))
}

// GetFileDataRange возвращает часть данных файла для Range-запросов
func (s *FileService) GetFileDataRange(ctx context.Context, file *domain.File, start, end int64) (s3.S3Object, error) {
	return s.s3Client.GetObjectRange(ctx, objectKey(file), start, end)
}

// GetSignedDownloadURL возвращает временную ссылку на скачивание напрямую из хранилища
func (s *FileService) GetSignedDownloadURL(ctx context.Context, file *domain.File, ttl time.Duration) (string, error) {
	return s.s3Client.GetSignedDownloadURL(ctx, objectKey(file), ttl)
}

func (s *FileService) Rename(ctx context.Context, fileUUID uuid.UUID, name string) error {
	if name == "" {
		return fmt.Errorf("file name is required")
	}
	return s.fileRepo.Rename(ctx, fileUUID, name)
}

// Delete удаляет файл: запись в БД, оригинал и превью в хранилище
func (s *FileService) Delete(ctx context.Context, file *domain.File, ownerID string) error {
	if err := s.fileRepo.Delete(ctx, file.UUID, ownerID); err != nil {
		return err
	}

	if err := s.s3Client.DeleteObject(objectKey(file)); err != nil {
		log.Printf("[FileService] Failed to delete object for %s: %v", file.UUID, err)
	}
	if err := s.s3Client.DeleteObject(previewKey(file.UUID)); err != nil {
		log.Printf("[FileService] Failed to delete preview for %s: %v", file.UUID, err)
	}

	return nil
}
