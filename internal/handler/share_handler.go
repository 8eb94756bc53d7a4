package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fotodrive/internal/auth"
	"fotodrive/internal/domain"
	"fotodrive/internal/service"
)

// ShareHandler управляет токенами доступа к альбомам. Все операции
// управления доступны только владельцу.
type ShareHandler struct {
	tokenService *service.TokenService
	gate         *service.GateService
}

func NewShareHandler(tokenService *service.TokenService, gate *service.GateService) *ShareHandler {
	return &ShareHandler{
		tokenService: tokenService,
		gate:         gate,
	}
}

type createTokenRequest struct {
	FolderID   int64             `json:"folder_id"`
	Permission domain.TokenLevel `json:"permission"`
	Kind       domain.TokenKind  `json:"kind,omitempty"`
	Email      *string           `json:"email,omitempty"`
	ExpiresIn  *int64            `json:"expires_in,omitempty"`
	AllowMap   bool              `json:"allow_map,omitempty"`
	Pin        *string           `json:"pin,omitempty"`
}

// CreateToken создает токен доступа к альбому
func (h *ShareHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	log.Printf("[CreateToken] Processing new token request")

	userID, err := auth.RequireUser(r)
	if err != nil {
		log.Printf("[CreateToken] Authentication failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[CreateToken] Failed to decode request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var expiresIn *time.Duration
	if req.ExpiresIn != nil {
		duration := time.Duration(*req.ExpiresIn) * time.Second
		expiresIn = &duration
	}

	token, err := h.tokenService.CreateToken(r.Context(), userID, service.CreateTokenParams{
		FolderID:   req.FolderID,
		Permission: req.Permission,
		Kind:       req.Kind,
		Email:      req.Email,
		ExpiresIn:  expiresIn,
		AllowMap:   req.AllowMap,
		Pin:        req.Pin,
	})
	if err != nil {
		log.Printf("[CreateToken] Failed to create token: %v", err)
		if strings.Contains(err.Error(), "access denied") {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to create token: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("[CreateToken] Successfully created token %s for folder %d", token.ID, token.FolderID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(token)
}

// ListFolderTokens возвращает все токены альбома
func (h *ShareHandler) ListFolderTokens(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	tokens, err := h.tokenService.ListFolderTokens(r.Context(), userID, folderID)
	if err != nil {
		log.Printf("[ListFolderTokens] Failed to list tokens: %v", err)
		if strings.Contains(err.Error(), "access denied") {
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to list tokens", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokens)
}

func tokenIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// SetTokenActive включает или выключает токен
func (h *ShareHandler) SetTokenActive(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tokenID, err := tokenIDParam(r)
	if err != nil {
		http.Error(w, "Invalid token ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.tokenService.SetActive(r.Context(), userID, tokenID, req.Active); err != nil {
		log.Printf("[SetTokenActive] Failed to update token: %v", err)
		writeTokenError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// LockToken блокирует токен PIN-кодом
func (h *ShareHandler) LockToken(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tokenID, err := tokenIDParam(r)
	if err != nil {
		http.Error(w, "Invalid token ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Pin == "" {
		http.Error(w, "PIN is required", http.StatusBadRequest)
		return
	}

	if err := h.tokenService.Lock(r.Context(), userID, tokenID, req.Pin); err != nil {
		log.Printf("[LockToken] Failed to lock token: %v", err)
		writeTokenError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UnlockToken снимает PIN-блокировку с токена
func (h *ShareHandler) UnlockToken(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tokenID, err := tokenIDParam(r)
	if err != nil {
		http.Error(w, "Invalid token ID", http.StatusBadRequest)
		return
	}

	if err := h.tokenService.Unlock(r.Context(), userID, tokenID); err != nil {
		log.Printf("[UnlockToken] Failed to unlock token: %v", err)
		writeTokenError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteToken удаляет токен
func (h *ShareHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tokenID, err := tokenIDParam(r)
	if err != nil {
		http.Error(w, "Invalid token ID", http.StatusBadRequest)
		return
	}

	if err := h.tokenService.Delete(r.Context(), userID, tokenID); err != nil {
		log.Printf("[DeleteToken] Failed to delete token: %v", err)
		writeTokenError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ResolveShare определяет альбом по шаринговой ссылке. Предъявитель
// токена получает папку и уровень доступа, дальше работает через
// обычные эндпоинты с параметром share.
func (h *ShareHandler) ResolveShare(w http.ResponseWriter, r *http.Request) {
	log.Printf("[ResolveShare] Started with path: %s", r.URL.String())

	tokenStr := chi.URLParam(r, "token")
	if tokenStr == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	token, err := h.tokenService.ResolveToken(r.Context(), tokenStr)
	if err != nil {
		log.Printf("[ResolveShare] Token not found: %v", err)
		http.Error(w, "Share not found", http.StatusNotFound)
		return
	}

	actor := auth.ResolveSession(r)
	creds := service.ShareCredentials{
		Token: tokenStr,
		Pin:   r.URL.Query().Get("h"),
		Kind:  token.Kind,
	}

	folder, verdict, err := h.gate.EnforceFolder(r.Context(), actor, token.FolderID, domain.PermissionRead, creds)
	if err != nil {
		log.Printf("[ResolveShare] Failed to check access: %v", err)
		http.Error(w, "Failed to resolve share", http.StatusInternalServerError)
		return
	}
	if !verdict.Allowed {
		service.WriteDeny(w, verdict)
		return
	}

	response := struct {
		FolderID   int64             `json:"folder_id"`
		FolderName string            `json:"folder_name"`
		Permission domain.TokenLevel `json:"permission"`
		Kind       domain.TokenKind  `json:"kind"`
		AllowMap   bool              `json:"allow_map"`
		ExpiresAt  time.Time         `json:"expires_at"`
	}{
		FolderID:   folder.ID,
		FolderName: folder.Name,
		Permission: token.Permission,
		Kind:       token.Kind,
		AllowMap:   token.AllowMap,
		ExpiresAt:  token.ExpiresAt,
	}

	log.Printf("[ResolveShare] Resolved share for folder %d", folder.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func writeTokenError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found or access denied") {
		http.Error(w, "Token not found or access denied", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
