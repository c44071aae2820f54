package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := New(Config{
		Driver:      "sqlite",
		DSN:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		AutoMigrate: true,
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(logger.Nop()),
		"sqlite": newSQLiteStore(t),
	}
}

func strPtr(s string) *string { return &s }

func TestCreateAndGetDocument(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &Document{RoomID: "ABCD12", Name: "notes", Type: DocumentWord, Content: strPtr("v1")}
			require.NoError(t, s.CreateDocument(ctx, doc))
			assert.NotEqual(t, uuid.Nil, doc.ID)

			got, err := s.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, "notes", got.Name)
			require.NotNil(t, got.Content)
			assert.Equal(t, "v1", *got.Content)
		})
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.CreateDocument(context.Background(), &Document{Name: "x", Type: "sheet"})
			assert.True(t, errors.Is(err, ErrInvalidDocument))
			err = s.CreateDocument(context.Background(), &Document{Type: DocumentCode})
			assert.True(t, errors.Is(err, ErrInvalidDocument))
		})
	}
}

func TestUpdateDocumentNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.UpdateDocument(context.Background(), uuid.New(), UpdateRequest{Content: strPtr("x")})
			assert.True(t, errors.Is(err, ErrDocumentNotFound))

			_, err = s.GetDocument(context.Background(), uuid.New())
			assert.True(t, errors.Is(err, ErrDocumentNotFound))
		})
	}
}

func TestUpdateDocumentKeepsRevisions(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &Document{Name: "code", Type: DocumentCode, Content: strPtr("a")}
			require.NoError(t, s.CreateDocument(ctx, doc))

			updated, err := s.UpdateDocument(ctx, doc.ID, UpdateRequest{Content: strPtr("b"), UpdatedBy: "alice"})
			require.NoError(t, err)
			assert.Equal(t, "b", *updated.Content)
			assert.Equal(t, "alice", updated.UpdatedBy)

			// 内容未变化不产生修订
			_, err = s.UpdateDocument(ctx, doc.ID, UpdateRequest{Content: strPtr("b"), UpdatedBy: "alice"})
			require.NoError(t, err)

			_, err = s.UpdateDocument(ctx, doc.ID, UpdateRequest{Content: strPtr("c"), UpdatedBy: "bob"})
			require.NoError(t, err)

			revs, err := s.ListRevisions(ctx, doc.ID)
			require.NoError(t, err)
			require.Len(t, revs, 2)
			assert.Equal(t, "a", revs[0].ContentDiff)
			assert.Equal(t, 1, revs[0].RevisionNumber)
			assert.Equal(t, "alice", revs[0].Username)
			assert.Equal(t, "b", revs[1].ContentDiff)
			assert.Equal(t, 2, revs[1].RevisionNumber)

			got, err := s.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, "c", *got.Content)
		})
	}
}

func TestUpdateDocumentContentExclusive(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := &Document{Name: "board", Type: DocumentFreeform, Content: strPtr("text")}
			require.NoError(t, s.CreateDocument(ctx, doc))

			updated, err := s.UpdateDocument(ctx, doc.ID, UpdateRequest{
				BinaryContent: []byte{0x89, 0x50, 0x4e, 0x47},
				ContentType:   "image/png",
			})
			require.NoError(t, err)
			assert.Nil(t, updated.Content)
			assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, updated.ContentBinary)
			assert.Equal(t, "image/png", updated.ContentType)

			updated, err = s.UpdateDocument(ctx, doc.ID, UpdateRequest{
				Content:       strPtr("ignored"),
				BinaryContent: []byte("%PDF"),
				ContentType:   "application/pdf",
			})
			require.NoError(t, err)
			assert.Nil(t, updated.Content)
			assert.Equal(t, []byte("%PDF"), updated.ContentBinary)
			assert.Equal(t, "application/pdf", updated.ContentType)

			updated, err = s.UpdateDocument(ctx, doc.ID, UpdateRequest{Content: strPtr("back to text")})
			require.NoError(t, err)
			assert.Empty(t, updated.ContentBinary)
			require.NotNil(t, updated.Content)
			assert.Equal(t, "back to text", *updated.Content)
		})
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestUpdateRequestIsBinary(t *testing.T) {
	assert.True(t, UpdateRequest{BinaryContent: []byte{1}, ContentType: "application/pdf"}.IsBinary())
	assert.True(t, UpdateRequest{BinaryContent: []byte{1}, ContentType: "image/png", Content: strPtr("x")}.IsBinary())
	assert.False(t, UpdateRequest{Content: strPtr("x"), ContentType: "image/png"}.IsBinary())
	assert.False(t, UpdateRequest{}.IsBinary())
}
