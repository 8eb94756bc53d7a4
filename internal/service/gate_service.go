package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"fotodrive/internal/access"
	"fotodrive/internal/domain"
)

// Узкие интерфейсы хранилищ: шлюзу нужны только выборка ресурса с токенами
// и учёт использований, проверяется это без настоящей БД
type gateTokenStore interface {
	GetFolderTokens(ctx context.Context, folderID int64) ([]domain.AccessToken, error)
	IncrementUses(ctx context.Context, tokenID uuid.UUID) error
}

type gateFolderStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Folder, error)
}

type gateFileStore interface {
	GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error)
}

// GateService — единая точка проверки доступа для всех эндпоинтов.
// Загружает ресурс с токенами его папки, вызывает движок и учитывает uses.
// Своего состояния не хранит.
type GateService struct {
	tokens  gateTokenStore
	folders gateFolderStore
	files   gateFileStore
}

func NewGateService(tokens gateTokenStore, folders gateFolderStore, files gateFileStore) *GateService {
	return &GateService{
		tokens:  tokens,
		folders: folders,
		files:   files,
	}
}

// ShareCredentials — параметры доступа по ссылке из query-строки:
// share = строка токена, h = PIN, t = "p" для персонального токена
type ShareCredentials struct {
	Token string
	Pin   string
	Kind  domain.TokenKind
}

func ShareCredentialsFromRequest(r *http.Request) ShareCredentials {
	q := r.URL.Query()
	creds := ShareCredentials{
		Token: q.Get("share"),
		Pin:   q.Get("h"),
		Kind:  domain.TokenKindLink,
	}
	if q.Get("t") == "p" {
		creds.Kind = domain.TokenKindPerson
	}
	return creds
}

// EnforceFolder решает доступ к папке. Ошибка означает сбой инфраструктуры,
// а не отказ в доступе — отказ приходит внутри вердикта.
func (s *GateService) EnforceFolder(
	ctx context.Context,
	actor domain.Actor,
	folderID int64,
	requested domain.Permission,
	creds ShareCredentials,
) (*domain.Folder, access.Verdict, error) {
	folder, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return nil, access.Verdict{}, fmt.Errorf("failed to load folder: %w", err)
	}

	verdict, err := s.decide(ctx, actor, folder.OwnerID, folder.ID, requested, creds)
	if err != nil {
		return nil, access.Verdict{}, err
	}

	return folder, verdict, nil
}

// EnforceFile решает доступ к файлу по токенам его родительской папки
func (s *GateService) EnforceFile(
	ctx context.Context,
	actor domain.Actor,
	fileUUID uuid.UUID,
	requested domain.Permission,
	creds ShareCredentials,
) (*domain.File, access.Verdict, error) {
	file, err := s.files.GetByUUID(ctx, fileUUID)
	if err != nil {
		return nil, access.Verdict{}, fmt.Errorf("failed to load file: %w", err)
	}

	verdict, err := s.decide(ctx, actor, file.OwnerID, file.FolderID, requested, creds)
	if err != nil {
		return nil, access.Verdict{}, err
	}

	return file, verdict, nil
}

func (s *GateService) decide(
	ctx context.Context,
	actor domain.Actor,
	ownerID string,
	folderID int64,
	requested domain.Permission,
	creds ShareCredentials,
) (access.Verdict, error) {
	// Владельцу токены не нужны, не ходим за ними в хранилище
	var tokens []domain.AccessToken
	if !(actor.IsAuthenticated() && actor.UserID == ownerID) && creds.Token != "" {
		var err error
		tokens, err = s.tokens.GetFolderTokens(ctx, folderID)
		if err != nil {
			return access.Verdict{}, fmt.Errorf("failed to load folder tokens: %w", err)
		}
	}

	verdict := access.Decide(actor, &access.Resource{OwnerID: ownerID, Tokens: tokens}, requested, creds.Token, creds.Pin)
	s.countUse(ctx, verdict)
	return verdict, nil
}

// countUse учитывает успешное использование токена: не более одного раза
// на запрос (реестр в контексте), сбой учёта не отменяет уже решённый доступ
func (s *GateService) countUse(ctx context.Context, verdict access.Verdict) {
	if !verdict.Allowed || verdict.Token == nil {
		return
	}

	if ledger, ok := ctx.Value(ledgerKey).(*usesLedger); ok {
		ledger.mu.Lock()
		already := ledger.counted[verdict.Token.ID]
		ledger.counted[verdict.Token.ID] = true
		ledger.mu.Unlock()
		if already {
			return
		}
	}

	if err := s.tokens.IncrementUses(ctx, verdict.Token.ID); err != nil {
		log.Printf("[Gate] Failed to count token use: %v", err)
	}
}

type ctxKey int

const ledgerKey ctxKey = iota

type usesLedger struct {
	mu      sync.Mutex
	counted map[uuid.UUID]bool
}

// WithUsesLedger — middleware, дающий запросу реестр учтённых токенов,
// чтобы повторный вызов шлюза в одном запросе не удваивал uses
func WithUsesLedger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ledgerKey, &usesLedger{counted: make(map[uuid.UUID]bool)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewUsesLedgerContext возвращает контекст с реестром учтённых токенов
func NewUsesLedgerContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ledgerKey, &usesLedger{counted: make(map[uuid.UUID]bool)})
}

// WriteDeny отправляет машиночитаемый отказ. По pin-required/invalid-pin
// клиент показывает форму ввода PIN вместо страницы ошибки.
func WriteDeny(w http.ResponseWriter, verdict access.Verdict) {
	status := http.StatusForbidden
	switch verdict.Reason {
	case access.DenyUnauthenticated, access.DenyPinRequired:
		status = http.StatusUnauthorized
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": string(verdict.Reason)})
}
