package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xfrr/goffmpeg/transcoder"

	"fotodrive/internal/domain"
)

type VideoService struct {
	fileService *FileService
	outputDir   string
}

func NewVideoService(fileService *FileService, outputDir string) (*VideoService, error) {
	// Проверяем наличие ffmpeg
	_, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &VideoService{
		fileService: fileService,
		outputDir:   outputDir,
	}, nil
}

// SegmentPath возвращает путь к файлу сегмента HLS-потока
func (s *VideoService) SegmentPath(fileUUID uuid.UUID, name string) string {
	return filepath.Join(s.outputDir, fileUUID.String(), name)
}

// PrepareStreaming готовит HLS-плейлист для видеофайла. Право чтения файла
// проверено шлюзом до вызова.
func (s *VideoService) PrepareStreaming(ctx context.Context, file *domain.File) (string, error) {
	log.Printf("[VideoService] Starting video preparation for UUID: %s", file.UUID)

	outputPath := filepath.Join(s.outputDir, file.UUID.String())
	playlistPath := filepath.Join(outputPath, "playlist.m3u8")

	if _, err := os.Stat(playlistPath); err == nil {
		log.Printf("[VideoService] Found existing playlist for UUID: %s", file.UUID)
		return playlistPath, nil
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		log.Printf("[VideoService] Failed to create directory: %v", err)
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	reader, err := s.fileService.GetFileData(ctx, file)
	if err != nil {
		log.Printf("[VideoService] Failed to get file data: %v", err)
		return "", err
	}
	defer reader.Close()

	inputFile, err := os.CreateTemp(os.TempDir(), "input-*.mp4")
	if err != nil {
		log.Printf("[VideoService] Failed to create temp file: %v", err)
		return "", err
	}
	defer os.Remove(inputFile.Name())

	// Копируем данные с учётом отмены контекста
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(inputFile, reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("[VideoService] Failed to copy video data: %v", err)
			return "", fmt.Errorf("failed to copy video data: %w", err)
		}
	case <-ctx.Done():
		log.Printf("[VideoService] Context canceled while copying file")
		return "", ctx.Err()
	}

	if err := inputFile.Close(); err != nil {
		log.Printf("[VideoService] Failed to close input file: %v", err)
		return "", err
	}

	trans := new(transcoder.Transcoder)

	log.Printf("[VideoService] Initializing transcoder for UUID: %s", file.UUID)
	err = trans.Initialize(inputFile.Name(), playlistPath)
	if err != nil {
		log.Printf("[VideoService] Failed to initialize transcoder: %v", err)
		return "", err
	}

	trans.MediaFile().SetVideoCodec("libx264")
	trans.MediaFile().SetAudioCodec("aac")
	trans.MediaFile().SetHlsSegmentDuration(4)
	trans.MediaFile().SetHlsPlaylistType("vod")
	trans.MediaFile().SetHlsSegmentFilename(filepath.Join(outputPath, "segment_%d.ts"))

	doneTrans := trans.Run(true)
	select {
	case err := <-doneTrans:
		if err != nil {
			log.Printf("[VideoService] Transcoding failed: %v", err)
			return "", fmt.Errorf("transcoding failed: %w", err)
		}
	case <-ctx.Done():
		log.Printf("[VideoService] Context canceled while transcoding")
		return "", ctx.Err()
	}

	log.Printf("[VideoService] Successfully prepared video for UUID: %s", file.UUID)
	return playlistPath, nil
}
