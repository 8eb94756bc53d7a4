package domain

import (
	"time"

	"github.com/google/uuid"
)

// File представляет фото или видео. Файл всегда принадлежит ровно одной папке
// и не несёт собственных токенов доступа — доступ решается по токенам папки.
type File struct {
	UUID        uuid.UUID  `json:"uuid" db:"uuid"`
	Name        string     `json:"name" db:"name"`
	MIMEType    string     `json:"mime_type" db:"mime_type"`
	SizeBytes   int64      `json:"size_bytes" db:"size_bytes"`
	FolderID    int64      `json:"folder_id" db:"folder_id"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	Description *string    `json:"description,omitempty" db:"description"`
	Latitude    *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64   `json:"longitude,omitempty" db:"longitude"`
	TakenAt     *time.Time `json:"taken_at,omitempty" db:"taken_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type FileUpload struct {
	Name      string
	MIMEType  string
	Size      int64
	FolderID  int64
	OwnerID   string
	Latitude  *float64
	Longitude *float64
	TakenAt   *time.Time
	FileData  []byte
}

// FileUploadResponse представляет ответ на загрузку файла
type FileUploadResponse struct {
	UUID      uuid.UUID `json:"uuid"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	FolderID  int64     `json:"folder_id"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}
