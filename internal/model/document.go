package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FileTypePDF      = "pdf"
	FileTypeText     = "txt"
	FileTypeMarkdown = "md"
)

// Document is one uploaded file. Only Metadata changes after creation.
type Document struct {
	ID        string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string            `gorm:"size:512;not null" json:"title"`
	FileName  string            `gorm:"size:512" json:"fileName"`
	FileType  string            `gorm:"size:16;not null" json:"fileType"`
	SizeBytes int64             `gorm:"not null" json:"sizeBytes"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (Document) TableName() string {
	return "documents"
}
