package room

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/tokmz/roomcast/pkg/errors"
)

// Kind 入站消息类别
type Kind int

const (
	KindRelay Kind = iota
	KindDocumentUpdate
	KindJoin
	KindLeave
)

func (k Kind) String() string {
	switch k {
	case KindDocumentUpdate:
		return "document_update"
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	default:
		return "relay"
	}
}

// 出站事件类型
const (
	TypeConnected      = "CONNECTED"
	TypeUserJoined     = "USER_JOINED"
	TypeUserLeft       = "USER_LEFT"
	TypeUsersList      = "USERS_LIST"
	TypeDocumentUpdate = "DOCUMENT_UPDATE"
	TypeError          = "ERROR"
)

// SystemAuthor 回放缓存时使用的作者名
const SystemAuthor = "System"

// DocumentUpdate 文档更新事件，文本与二进制内容互斥
type DocumentUpdate struct {
	DocumentID    string
	Content       *string
	BinaryContent []byte
	ContentType   string
	Author        string
}

// IsBinary 是否为二进制内容
func (u *DocumentUpdate) IsBinary() bool {
	return len(u.BinaryContent) > 0
}

// Inbound 解析后的入站消息
type Inbound struct {
	Kind     Kind
	Type     string
	Username string
	Update   *DocumentUpdate
	Raw      []byte
}

// Decode 解析入站消息并分类
// 判定顺序：文档更新 > join > leave/disconnect > 其它转发
func Decode(raw []byte) (*Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, errors.ErrMalformedMessage.WithMessage("message must be a JSON object")
	}

	msg := &Inbound{Raw: raw}
	msg.Type, _ = stringField(fields, "type")
	msg.Username = username(fields)

	_, hasDoc := fields["documentId"]
	_, hasContent := fields["content"]
	hasBinary := present(fields, "binaryContent")

	switch {
	case hasDoc && (hasContent || hasBinary):
		update, err := decodeUpdate(fields)
		if err != nil {
			return nil, err
		}
		update.Author = msg.Username
		msg.Kind = KindDocumentUpdate
		msg.Update = update
	case strings.EqualFold(msg.Type, "join"):
		msg.Kind = KindJoin
	case strings.EqualFold(msg.Type, "leave"), strings.EqualFold(msg.Type, "disconnect"):
		msg.Kind = KindLeave
	default:
		msg.Kind = KindRelay
		return msg, nil
	}

	if (msg.Kind == KindJoin || msg.Kind == KindLeave) && msg.Username == "" {
		return nil, errors.ErrMissingField.WithMessage("username is required")
	}
	return msg, nil
}

func decodeUpdate(fields map[string]json.RawMessage) (*DocumentUpdate, error) {
	docID, ok := stringField(fields, "documentId")
	if !ok || docID == "" {
		return nil, errors.ErrMissingField.WithMessage("documentId must be a non-empty string")
	}

	u := &DocumentUpdate{DocumentID: docID}
	u.ContentType, _ = stringField(fields, "contentType")

	// 携带 binaryContent 即为二进制更新，文本内容被忽略
	if present(fields, "binaryContent") {
		encoded, ok := stringField(fields, "binaryContent")
		if !ok || encoded == "" {
			return nil, errors.ErrMissingField.WithMessage("binaryContent must be a non-empty base64 string")
		}
		if u.ContentType == "" {
			return nil, errors.ErrMissingField.WithMessage("contentType is required for binaryContent")
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(data) == 0 {
			return nil, errors.ErrMalformedMessage.WithMessage("binaryContent must be base64")
		}
		u.BinaryContent = data
		return u, nil
	}

	content, ok := stringField(fields, "content")
	if !ok {
		return nil, errors.ErrMissingField.WithMessage("content must be a string")
	}
	u.Content = &content
	return u, nil
}

// present 字段存在且不为 null
func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && string(raw) != "null"
}

func username(fields map[string]json.RawMessage) string {
	if name, ok := stringField(fields, "username"); ok && name != "" {
		return name
	}
	name, _ := stringField(fields, "userName")
	return name
}

// stringField 读取字符串字段，字段缺失或不是字符串时 ok 为 false
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

type connectedEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type presenceEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Username  string `json:"username"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

type usersListEvent struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}

type documentUpdateEvent struct {
	Type          string  `json:"type"`
	DocumentID    string  `json:"documentId"`
	Content       *string `json:"content,omitempty"`
	BinaryContent []byte  `json:"binaryContent,omitempty"`
	ContentType   string  `json:"contentType,omitempty"`
	Username      string  `json:"username,omitempty"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// 出站事件均为固定结构，不会失败
		panic(err)
	}
	return data
}

func connectedMessage(roomKey string) []byte {
	return encode(connectedEvent{Type: TypeConnected, RoomID: roomKey, Message: "Connected to room " + roomKey})
}

func presenceMessage(typ, sessionID, name, roomKey string, at time.Time) []byte {
	return encode(presenceEvent{Type: typ, SessionID: sessionID, Username: name, RoomID: roomKey, Timestamp: at.UnixMilli()})
}

func usersListMessage(roomKey string, users []string) []byte {
	return encode(usersListEvent{Type: TypeUsersList, RoomID: roomKey, Users: users})
}

func documentUpdateMessage(docID string, doc CachedDocument, author string) []byte {
	ev := documentUpdateEvent{Type: TypeDocumentUpdate, DocumentID: docID, ContentType: doc.ContentType, Username: author}
	if len(doc.BinaryContent) > 0 {
		ev.BinaryContent = doc.BinaryContent
	} else {
		ev.Content = doc.Content
	}
	return encode(ev)
}

func errorMessage(message string) []byte {
	return encode(errorEvent{Type: TypeError, Message: message})
}
