package ws

import "github.com/tokmz/roomcast/pkg/errors"

// 传输层错误，错误码 6xxx
var (
	ErrTooManyConnections = errors.New(6001, "too many connections", 503)
	ErrClientIDExists     = errors.New(6002, "client id already exists", 409)
	ErrConnectionClosed   = errors.New(6003, "connection closed")
	ErrChannelFull        = errors.New(6004, "send queue full")
	ErrManagerClosed      = errors.New(6005, "server is shutting down", 503)
)
