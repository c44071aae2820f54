package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// memoryStore 内存存储（开发与测试使用，进程退出即丢失）
type memoryStore struct {
	mu        sync.RWMutex
	docs      map[uuid.UUID]*Document
	revisions map[uuid.UUID][]DocumentRevision
	log       logger.Logger
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(log logger.Logger) Store {
	if log == nil {
		log = logger.Nop()
	}
	return &memoryStore{
		docs:      make(map[uuid.UUID]*Document),
		revisions: make(map[uuid.UUID][]DocumentRevision),
		log:       log.Named("store"),
	}
}

func (s *memoryStore) CreateDocument(_ context.Context, doc *Document) error {
	if doc.Name == "" || !doc.Type.Valid() {
		return ErrInvalidDocument
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc.clone()
	return nil
}

func (s *memoryStore) GetDocument(_ context.Context, id uuid.UUID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc.clone(), nil
}

func (s *memoryStore) UpdateDocument(_ context.Context, id uuid.UUID, req UpdateRequest) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}

	now := time.Now()
	if rev := applyUpdate(doc, req, len(s.revisions[id])+1); rev != nil {
		rev.CreatedAt = now
		s.revisions[id] = append(s.revisions[id], *rev)
	}
	doc.UpdatedAt = now

	s.log.Debug("document updated", zap.String("document_id", id.String()), zap.Bool("binary", req.IsBinary()))
	return doc.clone(), nil
}

func (s *memoryStore) ListRevisions(_ context.Context, id uuid.UUID) ([]DocumentRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]DocumentRevision(nil), s.revisions[id]...), nil
}

func (s *memoryStore) Close() error { return nil }
