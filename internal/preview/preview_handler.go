package preview

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fotodrive/internal/auth"
	"fotodrive/internal/domain"
	"fotodrive/internal/service"
)

type Handler struct {
	service     *Service
	fileService *service.FileService
	gate        *service.GateService
}

func NewHandler(previewService *Service, fileService *service.FileService, gate *service.GateService) *Handler {
	return &Handler{
		service:     previewService,
		fileService: fileService,
		gate:        gate,
	}
}

// GetPreview отдает превью файла. Требует право чтения: владелец или
// предъявитель действующего токена папки.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		log.Printf("[PreviewHandler] Invalid UUID: %v", err)
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	file, verdict, err := h.gate.EnforceFile(r.Context(), actor, fileUUID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[PreviewHandler] Failed to check access: %v", err)
		http.Error(w, "Failed to get file info", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	fileData, err := h.fileService.GetFileData(r.Context(), file)
	if err != nil {
		log.Printf("[PreviewHandler] Failed to get file data: %v", err)
		http.Error(w, "Failed to get file data", http.StatusInternalServerError)
		return
	}
	defer fileData.Close()

	previewData, err := h.service.GetOrGeneratePreview(
		r.Context(),
		fileUUID.String(),
		file.MIMEType,
		fileData,
	)
	if err != nil {
		log.Printf("[PreviewHandler] Failed to generate preview: %v", err)
		http.Error(w, fmt.Sprintf("Failed to generate preview: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")

	w.WriteHeader(http.StatusOK)
	w.Write(previewData)
}
