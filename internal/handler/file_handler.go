package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fotodrive/internal/auth"
	"fotodrive/internal/domain"
	"fotodrive/internal/service"
)

type FileHandler struct {
	fileService  *service.FileService
	videoService *service.VideoService
	gate         *service.GateService
}

func NewFileHandler(
	fileService *service.FileService,
	videoService *service.VideoService,
	gate *service.GateService,
) *FileHandler {
	return &FileHandler{
		fileService:  fileService,
		videoService: videoService,
		gate:         gate,
	}
}

// UploadResult представляет результат загрузки одного файла
type UploadResult struct {
	File  *domain.File `json:"file,omitempty"`
	Error string       `json:"error,omitempty"`
}

// MultiUploadResponse представляет ответ на множественную загрузку
type MultiUploadResponse struct {
	Results []UploadResult `json:"results"`
}

// UploadFile обрабатывает загрузку файлов в папку. Требует право записи:
// владелец папки или предъявитель WRITE-токена.
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	folderID, err := strconv.ParseInt(r.FormValue("folder_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, folderID, domain.PermissionWrite, creds)
	if err != nil {
		log.Printf("[UploadFile] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to verify folder access", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	// Геоданные применяются при загрузке одиночного файла
	var latitude, longitude *float64
	var takenAt *time.Time
	if len(files) == 1 {
		latitude = parseFloatValue(r.FormValue("latitude"))
		longitude = parseFloatValue(r.FormValue("longitude"))
		if v := r.FormValue("taken_at"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				takenAt = &t
			}
		}
	}

	results := make([]UploadResult, len(files))
	for i, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			results[i] = UploadResult{Error: err.Error()}
			continue
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			results[i] = UploadResult{Error: err.Error()}
			continue
		}

		upload := &domain.FileUpload{
			Name:      fileHeader.Filename,
			MIMEType:  fileHeader.Header.Get("Content-Type"),
			Size:      fileHeader.Size,
			FolderID:  folderID,
			OwnerID:   folder.OwnerID,
			FileData:  data,
			Latitude:  latitude,
			Longitude: longitude,
			TakenAt:   takenAt,
		}

		uploaded, err := h.fileService.Upload(r.Context(), upload)
		if err != nil {
			log.Printf("[UploadFile] Ошибка загрузки файла %s: %v", fileHeader.Filename, err)
			results[i] = UploadResult{Error: err.Error()}
			continue
		}

		results[i] = UploadResult{File: uploaded}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MultiUploadResponse{Results: results})
}

func parseFloatValue(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// DownloadFile обрабатывает скачивание файла с поддержкой стриминга.
// Требует право чтения: владелец или предъявитель действующего токена.
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	log.Printf("[Download] Начало запроса на скачивание")

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		log.Printf("[Download] Некорректный UUID: %v", err)
		http.Error(w, "Некорректный UUID файла", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	file, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[Download] Ошибка получения информации о файле: %v", err)
		http.Error(w, "Ошибка получения информации о файле", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	log.Printf("[Download] Информация о файле: ID=%s, Name=%s, Size=%d, MimeType=%s",
		fileUUID, file.Name, file.SizeBytes, file.MIMEType)

	encodedFileName := url.QueryEscape(file.Name)
	asciiName := strings.ReplaceAll(file.Name, `"`, `\"`)
	contentDisposition := fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, asciiName, encodedFileName)

	w.Header().Set("Content-Type", file.MIMEType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", contentDisposition)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))

	var start, end int64
	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		log.Printf("[Download] Получен Range запрос: %s", rangeHeader)
		ranges, err := parseRange(rangeHeader, file.SizeBytes)
		if err != nil {
			log.Printf("[Download] Ошибка парсинга Range: %v", err)
			http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if len(ranges) != 1 {
			http.Error(w, "Multiple ranges not supported", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		start = ranges[0][0]
		end = ranges[0][1]

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, file.SizeBytes))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		log.Printf("[Download] Отдаем частичный контент: %d-%d/%d", start, end, file.SizeBytes)
		w.WriteHeader(http.StatusPartialContent)
	} else {
		start = 0
		end = file.SizeBytes - 1
		log.Printf("[Download] Отдаем полный файл: %d байт", file.SizeBytes)
		w.WriteHeader(http.StatusOK)
	}

	reader, err := h.fileService.GetFileDataRange(r.Context(), file, start, end)
	if err != nil {
		log.Printf("[Download] Ошибка получения данных файла: %v", err)
		return
	}
	defer reader.Close()

	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			nw, ew := w.Write(buf[:n])
			written += int64(nw)
			if ew != nil {
				log.Printf("[Download] Ошибка записи: %v", ew)
				return
			}
			if nw != n {
				log.Printf("[Download] Короткая запись: %d < %d", nw, n)
				return
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[Download] Ошибка при чтении файла: %v", err)
			return
		}

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	duration := time.Since(startTime)
	log.Printf("[Download] Завершено. Отправлено %d байт за %v", written, duration)
}

// GetDownloadURL возвращает временную подписанную ссылку на скачивание
// напрямую из хранилища
func (h *FileHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	file, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[GetDownloadURL] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	signedURL, err := h.fileService.GetSignedDownloadURL(r.Context(), file, 15*time.Minute)
	if err != nil {
		log.Printf("[GetDownloadURL] Ошибка генерации ссылки: %v", err)
		http.Error(w, "Failed to generate download URL", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": signedURL})
}

// parseRange разбирает заголовок Range
func parseRange(rangeHeader string, fileSize int64) ([][2]int64, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return nil, fmt.Errorf("invalid range format")
	}

	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	var ranges [][2]int64

	for _, r := range strings.Split(rangeHeader, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}

		parts := strings.Split(r, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid range format")
		}

		var start, end int64
		var err error

		if parts[0] == "" {
			// Суффиксный диапазон: -N
			end, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, err
			}
			start = fileSize - end
			end = fileSize - 1
		} else {
			start, err = strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return nil, err
			}

			if parts[1] == "" {
				end = fileSize - 1
			} else {
				end, err = strconv.ParseInt(parts[1], 10, 64)
				if err != nil {
					return nil, err
				}
			}
		}

		if start < 0 || end < 0 || start > end || end >= fileSize {
			return nil, fmt.Errorf("invalid range values")
		}

		ranges = append(ranges, [2]int64{start, end})
	}

	return ranges, nil
}

// RenameFile обрабатывает запрос на переименование файла. Требует право
// записи в родительскую папку.
func (h *FileHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		log.Printf("[RenameFile] Некорректный UUID: %v", err)
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[RenameFile] Ошибка декодирования JSON: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewName == "" {
		http.Error(w, "New name is required", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	file, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionWrite, creds)
	if err != nil {
		log.Printf("[RenameFile] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	if err := h.fileService.Rename(r.Context(), file.UUID, req.NewName); err != nil {
		log.Printf("[RenameFile] Ошибка переименования: %v", err)
		http.Error(w, fmt.Sprintf("Failed to rename file: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "success",
		"message": "File renamed successfully",
	})
}

// DeleteFile удаляет файл. Доступно только владельцу, токены не дают
// права на удаление.
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	file, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionDelete, creds)
	if err != nil {
		log.Printf("[DeleteFile] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	if err := h.fileService.Delete(r.Context(), file, file.OwnerID); err != nil {
		log.Printf("[DeleteFile] Ошибка удаления: %v", err)
		http.Error(w, "Failed to delete file", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// StreamVideo готовит HLS-поток для видеофайла и отдает плейлист.
// Требует право чтения.
func (h *FileHandler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	log.Printf("[StreamVideo] Начало запроса на стриминг")

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		log.Printf("[StreamVideo] Некорректный UUID: %v", err)
		http.Error(w, "Invalid UUID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	file, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[StreamVideo] Ошибка получения информации о файле: %v", err)
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	if !strings.HasPrefix(file.MIMEType, "video/") {
		http.Error(w, "File is not a video", http.StatusBadRequest)
		return
	}

	playlistPath, err := h.videoService.PrepareStreaming(r.Context(), file)
	if err != nil {
		log.Printf("[StreamVideo] Ошибка подготовки потока: %v", err)
		http.Error(w, "Failed to prepare video stream", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	http.ServeFile(w, r, playlistPath)
}

// StreamVideoSegment отдает сегмент HLS-потока. Требует право чтения.
func (h *FileHandler) StreamVideoSegment(w http.ResponseWriter, r *http.Request) {
	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid UUID", http.StatusBadRequest)
		return
	}

	segment := chi.URLParam(r, "segment")
	if segment == "" || strings.Contains(segment, "/") || strings.Contains(segment, "..") {
		http.Error(w, "Invalid segment name", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	_, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[StreamVideoSegment] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	http.ServeFile(w, r, h.videoService.SegmentPath(fileUUID, segment))
}
