package domain

import (
	"time"

	"github.com/google/uuid"
)

// Folder представляет альбом пользователя
type Folder struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	ParentID    *int64     `json:"parent_id,omitempty" db:"parent_id"`
	Path        string     `json:"path" db:"path"`
	Level       int        `json:"level" db:"level"`
	Description *string    `json:"description,omitempty" db:"description"`
	CoverFileID *uuid.UUID `json:"cover_file_id,omitempty" db:"cover_file_id"`
	SizeBytes   int64      `json:"size_bytes" db:"size_bytes"`
	FilesCount  int        `json:"files_count" db:"files_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

type FolderContent struct {
	Folder     Folder   `json:"folder"`
	Files      []File   `json:"files"`
	Subfolders []Folder `json:"subfolders"`
}

// MapPoint — геоточка файла для карты альбома
type MapPoint struct {
	FileUUID  uuid.UUID  `json:"file_uuid" db:"uuid"`
	Name      string     `json:"name" db:"name"`
	Latitude  float64    `json:"latitude" db:"latitude"`
	Longitude float64    `json:"longitude" db:"longitude"`
	TakenAt   *time.Time `json:"taken_at,omitempty" db:"taken_at"`
}
