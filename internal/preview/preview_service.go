package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/bimg"
	"github.com/jmoiron/sqlx"

	"fotodrive/internal/service/s3"
)

func init() {
	dirs := []string{
		"/tmp/previews",
		"/tmp/.config",
		"/tmp/.cache",
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0777); err != nil {
			log.Printf("Warning: failed to create directory %s: %v", dir, err)
		}
		if err := os.Chmod(dir, 0777); err != nil {
			log.Printf("Warning: failed to chmod directory %s: %v", dir, err)
		}
	}
}

const (
	maxImageSize  = 1024            // максимальный размер превью в пикселях
	jpegQuality   = 85              // качество JPEG
	previewPrefix = "previews/"     // префикс для превью в S3
	tmpDir        = "/tmp/previews" // директория для временных файлов
)

type Service struct {
	s3Client s3.Storage
	db       *sqlx.DB
}

// NewService создает новый сервис для работы с превью
func NewService(s3Client s3.Storage, db *sqlx.DB) *Service {
	return &Service{
		s3Client: s3Client,
		db:       db,
	}
}

// StartCleanupTask запускает периодическую очистку старых превью
func (s *Service) StartCleanupTask() {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		for range ticker.C {
			s.cleanupOldPreviews(context.Background())
		}
	}()
}

// cleanupOldPreviews удаляет превью старше 30 дней из S3 и базы данных
func (s *Service) cleanupOldPreviews(ctx context.Context) {
	log.Printf("[Preview] Starting preview cleanup task")

	var fileUUIDs []string
	query := `
        DELETE FROM file_previews
        WHERE created_at < NOW() - INTERVAL '30 days'
        RETURNING file_uuid`

	if err := s.db.SelectContext(ctx, &fileUUIDs, query); err != nil {
		log.Printf("[Preview] Error cleaning up old previews from database: %v", err)
		return
	}

	for _, fileUUID := range fileUUIDs {
		key := previewPrefix + fileUUID
		if err := s.s3Client.DeleteObject(key); err != nil {
			log.Printf("[Preview] Error deleting preview %s from S3: %v", key, err)
		}
	}

	log.Printf("[Preview] Cleanup completed, removed %d previews", len(fileUUIDs))
}

// GetOrGeneratePreview возвращает превью файла: берет готовое из S3 или
// генерирует из данных файла и кеширует
func (s *Service) GetOrGeneratePreview(ctx context.Context, fileUUID string, fileType string, data io.Reader) ([]byte, error) {
	previewKey := previewPrefix + fileUUID

	// Пробуем взять готовое превью из S3
	obj, err := s.s3Client.GetObject(ctx, previewKey)
	if err == nil {
		defer obj.Close()
		previewData, err := io.ReadAll(obj)
		if err == nil && len(previewData) > 0 {
			log.Printf("[Preview] Найдено существующее превью: %s", previewKey)
			return previewData, nil
		}
	}

	fileData, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}

	log.Printf("[Preview] Генерация превью для %s, тип %s, размер %d байт", fileUUID, fileType, len(fileData))

	var previewData []byte
	switch {
	case strings.HasPrefix(fileType, "image/"):
		previewData, err = s.optimizeImage(fileData)
	case strings.HasPrefix(fileType, "video/"):
		previewData, err = s.generateVideoPreview(bytes.NewReader(fileData))
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}

	if err != nil {
		log.Printf("[Preview] Ошибка генерации превью: %v", err)
		return nil, fmt.Errorf("failed to generate preview: %w", err)
	}

	if err := s.savePreview(ctx, fileUUID, previewKey, previewData); err != nil {
		log.Printf("[Preview] Предупреждение: не удалось сохранить превью: %v", err)
	} else {
		log.Printf("[Preview] Превью успешно сохранено в S3: %s", previewKey)
	}

	return previewData, nil
}

// savePreview загружает превью в S3 и фиксирует его в file_previews
func (s *Service) savePreview(ctx context.Context, fileUUID, key string, data []byte) error {
	if err := s.s3Client.UploadBytes(key, data); err != nil {
		return fmt.Errorf("failed to upload preview: %w", err)
	}

	query := `
        INSERT INTO file_previews (file_uuid, size_bytes, created_at)
        VALUES ($1, $2, CURRENT_TIMESTAMP)
        ON CONFLICT (file_uuid)
        DO UPDATE SET size_bytes = $2, created_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, fileUUID, len(data)); err != nil {
		return fmt.Errorf("failed to record preview: %w", err)
	}

	return nil
}

// optimizeImage оптимизирует изображение до нужного размера
func (s *Service) optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, maxImageSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}

const ffmpegTimeout = 30 * time.Second

func (s *Service) generateVideoPreview(data io.Reader) ([]byte, error) {
	tmpPath := filepath.Join(tmpDir, fmt.Sprintf("preview_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(tmpPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpPath)

	videoPath := filepath.Join(tmpPath, "input.mp4")
	videoFile, err := os.Create(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(videoFile, data); err != nil {
		videoFile.Close()
		return nil, fmt.Errorf("failed to save video data: %w", err)
	}
	videoFile.Close()

	duration, err := getVideoDuration(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get video duration: %w", err)
	}

	previewTime := calculatePreviewTime(duration)
	outputPath := filepath.Join(tmpPath, "output.jpg")

	ctx, cancel := context.WithTimeout(context.Background(), ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", previewTime,
		"-i", videoPath,
		"-vf", fmt.Sprintf("scale=%d:-1:force_original_aspect_ratio=decrease", maxImageSize),
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to extract frame: %w (stderr: %s)", err, stderr.String())
	}

	imgData, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame image: %w", err)
	}

	return s.optimizeImage(imgData)
}

// getVideoDuration получает длительность видео
func getVideoDuration(videoPath string) (string, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get duration: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// calculatePreviewTime вычисляет время для кадра превью
func calculatePreviewTime(duration string) string {
	durationFloat, err := strconv.ParseFloat(duration, 64)
	if err != nil {
		return "00:00:01"
	}

	if durationFloat <= 10 {
		return "00:00:01"
	}

	// Берем кадр на 10% от начала видео
	offset := durationFloat * 0.1
	return fmt.Sprintf("%02d:%02d:%02d", int(offset)/3600, (int(offset)%3600)/60, int(offset)%60)
}
