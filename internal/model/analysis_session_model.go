package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AnalysisSession struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	DocumentName   string         `gorm:"type:text;not null"`
	Status         string         `gorm:"type:varchar(20);not null;index"`
	Progress       int            `gorm:"not null;default:0"`
	Message        string         `gorm:"type:text"`
	Error          string         `gorm:"type:text"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"not null"`
	ExpiresAt      time.Time      `gorm:"not null;index"` // Indexed for the sweep
	Result         datatypes.JSON `gorm:"type:jsonb"`
	MessageHistory datatypes.JSON `gorm:"type:jsonb"`
	TempFilePath   string         `gorm:"type:text"`
	Origin         string         `gorm:"type:text;index"`
}

func (AnalysisSession) TableName() string {
	return "analysis_sessions"
}
