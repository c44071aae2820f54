package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/orm"
)

// gormStore 基于 GORM 的存储实现
type gormStore struct {
	db  *gorm.DB
	log logger.Logger
}

// NewGormStore 创建 GORM 存储，autoMigrate 为 true 时自动建表
func NewGormStore(db *gorm.DB, log logger.Logger, autoMigrate bool) (Store, error) {
	if autoMigrate {
		if err := db.AutoMigrate(&Document{}, &DocumentRevision{}); err != nil {
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}
	return &gormStore{db: db, log: log.Named("store")}, nil
}

func (s *gormStore) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.Name == "" || !doc.Type.Valid() {
		return ErrInvalidDocument
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("store: create document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *gormStore) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("store: get document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *gormStore) UpdateDocument(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&doc, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&DocumentRevision{}).Where("document_id = ?", id).Count(&count).Error; err != nil {
			return err
		}

		if rev := applyUpdate(&doc, req, int(count)+1); rev != nil {
			if err := tx.Create(rev).Error; err != nil {
				return err
			}
		}
		return tx.Save(&doc).Error
	})
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store: update document %s: %w", id, err)
	}

	s.log.Debug("document updated",
		zap.String("document_id", id.String()),
		zap.Bool("binary", req.IsBinary()),
	)
	return &doc, nil
}

func (s *gormStore) ListRevisions(ctx context.Context, id uuid.UUID) ([]DocumentRevision, error) {
	var revs []DocumentRevision
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", id).
		Order("revision_number ASC").
		Find(&revs).Error; err != nil {
		return nil, fmt.Errorf("store: list revisions %s: %w", id, err)
	}
	return revs, nil
}

func (s *gormStore) Close() error {
	return orm.Close(s.db)
}
