package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/feed"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/store"
	"github.com/tokmz/roomcast/pkg/tracing"
)

// Result 持久化结果
type Result int

const (
	// ResultTemporary 临时文档 ID，未调用存储
	ResultTemporary Result = iota
	// ResultPersisted 已写入存储
	ResultPersisted
	// ResultNotFound 存储中不存在该文档
	ResultNotFound
	// ResultFailed 存储返回其它错误
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPersisted:
		return "persisted"
	case ResultNotFound:
		return "not_found"
	case ResultFailed:
		return "failed"
	default:
		return "temporary"
	}
}

// feedQueueSize 待推送事件上限，队列满时丢弃
const feedQueueSize = 256

type feedItem struct {
	ctx context.Context
	ev  feed.DocumentEvent
}

// Bridge 将文档更新写入存储；失败只记录日志，不影响广播
// 变更推送由后台协程异步完成
type Bridge struct {
	store   store.DocumentStore
	feed    feed.Publisher
	log     logger.Logger
	metrics Metrics
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan feedItem
	done   chan struct{}
}

// NewBridge 创建持久化桥
func NewBridge(st store.DocumentStore, pub feed.Publisher, log logger.Logger, metrics Metrics) *Bridge {
	if pub == nil {
		pub = feed.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	b := &Bridge{
		store:   st,
		feed:    pub,
		log:     log,
		metrics: metrics,
		now:     time.Now,
		queue:   make(chan feedItem, feedQueueSize),
		done:    make(chan struct{}),
	}
	go b.publishLoop()
	return b
}

// Close 停止接收新事件，等待队列中的事件推送完毕
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
}

func (b *Bridge) publishLoop() {
	defer close(b.done)
	for item := range b.queue {
		if err := b.feed.Publish(item.ctx, item.ev); err != nil {
			b.log.WarnContext(item.ctx, "publish document event failed",
				zap.String("document_id", item.ev.DocumentID),
				zap.Error(err),
			)
		}
	}
}

// ApplyUpdate 持久化一次文档更新
// 非 UUID 形式的文档 ID 视为临时文档，直接跳过
func (b *Bridge) ApplyUpdate(ctx context.Context, roomKey string, u *DocumentUpdate) Result {
	id, err := uuid.Parse(u.DocumentID)
	if err != nil || b.store == nil {
		b.log.DebugContext(ctx, "temporary document, skip persistence",
			zap.String("room", roomKey),
			zap.String("document_id", u.DocumentID),
		)
		b.metrics.IncrementPersistResult(ResultTemporary.String())
		return ResultTemporary
	}

	ctx, span := tracing.StartSpan(ctx, "room.persist", trace.WithAttributes(
		attribute.String("room.key", roomKey),
		attribute.String("document.id", u.DocumentID),
		attribute.Bool("document.binary", u.IsBinary()),
	))
	defer span.End()

	req := store.UpdateRequest{ContentType: u.ContentType, UpdatedBy: u.Author}
	if u.IsBinary() {
		req.BinaryContent = u.BinaryContent
	} else {
		req.Content = u.Content
	}

	result := ResultPersisted
	if _, err := b.store.UpdateDocument(ctx, id, req); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			result = ResultNotFound
			b.log.WarnContext(ctx, "document not found, update kept in memory only",
				zap.String("room", roomKey),
				zap.String("document_id", u.DocumentID),
			)
		} else {
			result = ResultFailed
			tracing.RecordError(span, err)
			b.log.ErrorContext(ctx, "persist document failed",
				zap.String("room", roomKey),
				zap.String("document_id", u.DocumentID),
				zap.Error(err),
			)
		}
	}
	span.SetAttributes(attribute.String("persist.result", result.String()))
	b.metrics.IncrementPersistResult(result.String())

	if result == ResultPersisted {
		b.publish(ctx, roomKey, u)
	}
	return result
}

// publish 将变更事件放入推送队列，不等待推送结果
func (b *Bridge) publish(ctx context.Context, roomKey string, u *DocumentUpdate) {
	ev := feed.DocumentEvent{
		RoomKey:     roomKey,
		DocumentID:  u.DocumentID,
		ContentType: u.ContentType,
		Binary:      u.IsBinary(),
		UpdatedBy:   u.Author,
		UpdatedAt:   b.now(),
	}
	if ev.Binary {
		ev.Size = len(u.BinaryContent)
	} else if u.Content != nil {
		ev.Size = len(*u.Content)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- feedItem{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		b.metrics.IncrementDroppedMessages()
		b.log.WarnContext(ctx, "document event queue full, event dropped",
			zap.String("room", roomKey),
			zap.String("document_id", u.DocumentID),
		)
	}
}
