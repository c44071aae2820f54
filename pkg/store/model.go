package store

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType 文档类型（对应编辑器种类）
type DocumentType string

const (
	DocumentCode         DocumentType = "code"
	DocumentWord         DocumentType = "word"
	DocumentPresentation DocumentType = "presentation"
	DocumentSpreadsheet  DocumentType = "spreadsheet"
	DocumentFreeform     DocumentType = "freeform"
	DocumentCustom       DocumentType = "custom"
)

// Valid 是否为已知类型
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentCode, DocumentWord, DocumentPresentation, DocumentSpreadsheet, DocumentFreeform, DocumentCustom:
		return true
	}
	return false
}

// Document 持久化文档
type Document struct {
	ID            uuid.UUID    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RoomID        string       `gorm:"size:64;index" json:"roomId"`
	Name          string       `gorm:"size:100;not null" json:"name"`
	Type          DocumentType `gorm:"size:20;not null" json:"type"`
	Content       *string      `gorm:"type:text" json:"content,omitempty"`
	ContentBinary []byte       `json:"binaryContent,omitempty"`
	ContentType   string       `gorm:"size:100" json:"contentType,omitempty"`
	CreatedBy     string       `gorm:"size:100" json:"createdBy,omitempty"`
	UpdatedBy     string       `gorm:"size:100" json:"updatedBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// TableName 表名
func (Document) TableName() string { return "documents" }

// DocumentRevision 文档修订，ContentDiff 保存被覆盖前的文本
type DocumentRevision struct {
	ID             uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID     uuid.UUID `gorm:"type:varchar(36);index;not null" json:"documentId"`
	Username       string    `gorm:"size:100" json:"username,omitempty"`
	ContentDiff    string    `gorm:"type:text;not null" json:"contentDiff"`
	RevisionNumber int       `gorm:"not null" json:"revisionNumber"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TableName 表名
func (DocumentRevision) TableName() string { return "document_revisions" }

// clone 深拷贝，避免调用方修改内部状态
func (d *Document) clone() *Document {
	cp := *d
	if d.Content != nil {
		content := *d.Content
		cp.Content = &content
	}
	if d.ContentBinary != nil {
		cp.ContentBinary = append([]byte(nil), d.ContentBinary...)
	}
	return &cp
}
