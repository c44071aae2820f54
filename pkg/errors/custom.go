package errors

/*
	内置错误码
	1xxx 通用  2xxx 房间  3xxx 配置  4xxx 存储  5xxx 消息总线/推送  6xxx 传输
*/

var (
	// ErrServer 服务器错误
	ErrServer = New(1000, "internal server error", 500)
	// ErrBadRequest 客户端请求错误
	ErrBadRequest = New(1001, "bad request", 400)
	// ErrNotFound 资源不存在
	ErrNotFound = New(1004, "resource not found", 404)
	// ErrServiceUnavailable 服务不可用
	ErrServiceUnavailable = New(1005, "service unavailable", 503)
)

var (
	// ErrInvalidRoomKey 房间号非法或缺失
	ErrInvalidRoomKey = New(2001, "invalid room key", 400)
	// ErrMalformedMessage 消息无法解析
	ErrMalformedMessage = New(2002, "malformed message", 400)
	// ErrMissingField 消息缺少必填字段
	ErrMissingField = New(2003, "missing required field", 400)
	// ErrRoomNotFound 房间不存在
	ErrRoomNotFound = New(2004, "room not found", 404)
)
