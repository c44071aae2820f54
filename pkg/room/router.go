package room

import (
	"context"
	stderrors "errors"
	"sync"
)

var (
	ErrHandlerNotFound = stderrors.New("room: handler not found")
	ErrHandlerExists   = stderrors.New("room: handler already exists")
	ErrRouterFrozen    = stderrors.New("room: router is frozen")
)

// Request 一次待处理的入站消息
type Request struct {
	Conn    Conn
	Room    string
	Message *Inbound
}

// Handler 消息处理器
type Handler func(ctx context.Context, req *Request) error

// NextFunc 中间件下一步函数
type NextFunc func() error

// MiddlewareFunc 中间件函数
type MiddlewareFunc func(ctx context.Context, req *Request, next NextFunc) error

// Router 按消息类别分发
type Router struct {
	handlers   map[Kind]Handler
	middleware []MiddlewareFunc
	compiled   map[Kind]Handler
	mu         sync.RWMutex
	frozen     bool
}

// NewRouter 创建路由器
func NewRouter() *Router {
	return &Router{handlers: make(map[Kind]Handler)}
}

// Register 注册处理器
func (r *Router) Register(kind Kind, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRouterFrozen
	}
	if _, exists := r.handlers[kind]; exists {
		return ErrHandlerExists
	}
	r.handlers[kind] = handler
	return nil
}

// Use 添加中间件
func (r *Router) Use(middleware ...MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// Freeze 冻结路由器并预编译处理器链
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true

	r.compiled = make(map[Kind]Handler, len(r.handlers))
	for kind, handler := range r.handlers {
		r.compiled[kind] = chain(r.middleware, handler)
	}
}

// Route 路由消息
func (r *Router) Route(ctx context.Context, req *Request) error {
	r.mu.RLock()
	if r.frozen {
		handler, exists := r.compiled[req.Message.Kind]
		r.mu.RUnlock()
		if !exists {
			return ErrHandlerNotFound
		}
		return handler(ctx, req)
	}

	handler, exists := r.handlers[req.Message.Kind]
	middleware := r.middleware
	r.mu.RUnlock()

	if !exists {
		return ErrHandlerNotFound
	}
	return chain(middleware, handler)(ctx, req)
}

// chain 从后向前包装中间件
func chain(middleware []MiddlewareFunc, handler Handler) Handler {
	final := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		mw, next := middleware[i], final
		final = func(ctx context.Context, req *Request) error {
			return mw(ctx, req, func() error {
				return next(ctx, req)
			})
		}
	}
	return final
}
