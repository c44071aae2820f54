// Package store 文档持久化：实时通道通过 DocumentStore 写入最新内容
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/tokmz/roomcast/pkg/errors"
)

var (
	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New(4004, "document not found", 404)
	// ErrInvalidDocument 文档字段非法
	ErrInvalidDocument = errors.New(4001, "invalid document", 400)
)

// UpdateRequest 文档更新请求
// 文本与二进制内容互斥：BinaryContent 非空时写入二进制并清空文本，否则写入 Content 并清空二进制
type UpdateRequest struct {
	Content       *string
	BinaryContent []byte
	ContentType   string
	UpdatedBy     string
}

// IsBinary 是否为二进制内容
func (r UpdateRequest) IsBinary() bool {
	return len(r.BinaryContent) > 0
}

// DocumentStore 实时通道依赖的最小接口
// 必须支持并发调用；同一文档并发更新时以最后一次写入为准
type DocumentStore interface {
	UpdateDocument(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Document, error)
}

// Store 完整的文档存储接口
type Store interface {
	DocumentStore

	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	ListRevisions(ctx context.Context, id uuid.UUID) ([]DocumentRevision, error)
	Close() error
}

// applyUpdate 将更新请求应用到文档，返回需要保存的修订（无则为 nil）
// 文本内容发生变化时，旧文本作为修订保存
func applyUpdate(doc *Document, req UpdateRequest, nextRevision int) *DocumentRevision {
	var rev *DocumentRevision
	if !req.IsBinary() && doc.Content != nil && req.Content != nil && *doc.Content != *req.Content {
		rev = &DocumentRevision{
			ID:             uuid.New(),
			DocumentID:     doc.ID,
			Username:       req.UpdatedBy,
			ContentDiff:    *doc.Content,
			RevisionNumber: nextRevision,
		}
	}

	switch {
	case req.IsBinary():
		doc.ContentBinary = req.BinaryContent
		doc.ContentType = req.ContentType
		doc.Content = nil
	case req.Content != nil:
		content := *req.Content
		doc.Content = &content
		doc.ContentType = req.ContentType
		doc.ContentBinary = nil
	}

	if req.UpdatedBy != "" {
		doc.UpdatedBy = req.UpdatedBy
	}
	return rev
}
