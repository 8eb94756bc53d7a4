package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fotodrive/internal/auth"
	"fotodrive/internal/domain"
	"fotodrive/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
	gate          *service.GateService
}

func NewFolderHandler(folderService *service.FolderService, gate *service.GateService) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		gate:          gate,
	}
}

type createFolderRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	ParentID    *int64  `json:"parent_id,omitempty"`
}

// CreateFolder создает альбом. Только для авторизованных пользователей,
// токены не дают права создавать альбомы.
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), req.Name, req.Description, req.ParentID, userID)
	if err != nil {
		log.Printf("[CreateFolder] Ошибка создания папки: %v", err)
		http.Error(w, "Failed to create folder", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(folder)
}

func folderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// GetFolderContent возвращает содержимое альбома: файлы и подальбомы.
// Требует право чтения: владелец или предъявитель действующего токена.
func (h *FolderHandler) GetFolderContent(w http.ResponseWriter, r *http.Request) {
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, folderID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[GetFolderContent] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	content, err := h.folderService.GetContent(r.Context(), folder.ID)
	if err != nil {
		log.Printf("[GetFolderContent] Ошибка получения содержимого: %v", err)
		http.Error(w, fmt.Sprintf("Failed to get folder content: %v", err), http.StatusInternalServerError)
		return
	}

	response := struct {
		FolderID int64           `json:"folder_id"`
		Folder   *domain.Folder  `json:"folder"`
		Files    []domain.File   `json:"files"`
		Folders  []domain.Folder `json:"folders"`
	}{
		FolderID: folder.ID,
		Folder:   &content.Folder,
		Files:    content.Files,
		Folders:  content.Subfolders,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[GetFolderContent] Ошибка кодирования ответа: %v", err)
	}
}

// RenameFolder переименовывает альбом. Требует право записи.
func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	var req struct {
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewName == "" {
		http.Error(w, "New name is required", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, folderID, domain.PermissionWrite, creds)
	if err != nil {
		log.Printf("[RenameFolder] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	if err := h.folderService.Rename(r.Context(), folder.ID, folder.OwnerID, req.NewName); err != nil {
		log.Printf("[RenameFolder] Ошибка переименования: %v", err)
		http.Error(w, "Failed to rename folder", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UpdateFolderMeta обновляет описание и обложку альбома. Требует право записи.
func (h *FolderHandler) UpdateFolderMeta(w http.ResponseWriter, r *http.Request) {
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Description *string    `json:"description"`
		CoverFileID *uuid.UUID `json:"cover_file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, folderID, domain.PermissionWrite, creds)
	if err != nil {
		log.Printf("[UpdateFolderMeta] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	if err := h.folderService.UpdateMeta(r.Context(), folder.ID, folder.OwnerID, req.Description, req.CoverFileID); err != nil {
		log.Printf("[UpdateFolderMeta] Ошибка обновления: %v", err)
		http.Error(w, "Failed to update folder", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteFolder удаляет альбом со всем содержимым. Доступно только владельцу.
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, folderID, domain.PermissionDelete, creds)
	if err != nil {
		log.Printf("[DeleteFolder] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	if err := h.folderService.Delete(r.Context(), folder.ID, folder.OwnerID); err != nil {
		log.Printf("[DeleteFolder] Ошибка удаления: %v", err)
		http.Error(w, "Failed to delete folder", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetFolderStructure возвращает дерево альбомов пользователя
func (h *FolderHandler) GetFolderStructure(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folders, err := h.folderService.GetStructure(r.Context(), userID)
	if err != nil {
		log.Printf("[GetFolderStructure] Ошибка получения структуры: %v", err)
		http.Error(w, "Failed to get folder structure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(folders)
}

// GetFolderMap возвращает геоточки файлов альбома. Для доступа по токену
// требуется отдельное разрешение на карту.
func (h *FolderHandler) GetFolderMap(w http.ResponseWriter, r *http.Request) {
	folderID, err := folderIDParam(r)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentialsFromRequest(r)

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, folderID, domain.PermissionReadMap, creds)
	if err != nil {
		log.Printf("[GetFolderMap] Ошибка проверки доступа: %v", err)
		http.Error(w, "Failed to get folder", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	points, err := h.folderService.GetMapPoints(r.Context(), folder.ID)
	if err != nil {
		log.Printf("[GetFolderMap] Ошибка получения геоточек: %v", err)
		http.Error(w, "Failed to get map points", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}
