package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel is the base model for all persisted entities
type BaseModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// PaginationResult represents paginated results
type PaginationResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// User represents an operator account that owns conversations
type User struct {
	BaseModel
	Email    string `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Name     string `gorm:"size:255" json:"name"`
	Role     string `gorm:"default:'agent'" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// GetAllModels returns all models for AutoMigrate
func GetAllModels() []interface{} {
	return []interface{}{
		&User{},
		&Conversation{},
		&Message{},
		&ChannelCredential{},
		&LIDMapping{},
	}
}
