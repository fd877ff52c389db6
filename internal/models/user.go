package models

import "gorm.io/gorm"

// User represents an account in the debt book.
type User struct {
	ID                 string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username           string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	PasswordHash       string `json:"-" gorm:"type:varchar(255)"`
	RecoveryQuestion   string `json:"recovery_question" gorm:"type:varchar(255)" validate:"required,max=255"`
	RecoveryAnswerHash string `json:"-" gorm:"type:varchar(255)"`
	gorm.Model                // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
