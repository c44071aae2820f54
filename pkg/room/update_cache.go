package room

import "sort"

// UpdateCache 房间内各文档的最新内容，用于向后加入的成员回放
type UpdateCache struct {
	reg *Registry
}

// NewUpdateCache 基于注册表创建更新缓存视图
func NewUpdateCache(reg *Registry) *UpdateCache {
	return &UpdateCache{reg: reg}
}

// Put 覆盖写入；房间已不存在时丢弃并返回 false
func (c *UpdateCache) Put(roomKey, docID string, doc CachedDocument) bool {
	return c.reg.update(roomKey, func(s *roomState) {
		s.docs[docID] = doc
	})
}

// Get 读取单个文档
func (c *UpdateCache) Get(roomKey, docID string) (CachedDocument, bool) {
	var (
		doc   CachedDocument
		found bool
	)
	c.reg.view(roomKey, func(s *roomState) {
		doc, found = s.docs[docID]
	})
	return doc, found
}

// Snapshot 房间内所有缓存文档的拷贝
func (c *UpdateCache) Snapshot(roomKey string) map[string]CachedDocument {
	out := make(map[string]CachedDocument)
	c.reg.view(roomKey, func(s *roomState) {
		for k, v := range s.docs {
			out[k] = v
		}
	})
	return out
}

// DocumentIDs 房间内已缓存的文档 ID（已排序）
func (c *UpdateCache) DocumentIDs(roomKey string) []string {
	ids := []string{}
	c.reg.view(roomKey, func(s *roomState) {
		for k := range s.docs {
			ids = append(ids, k)
		}
	})
	sort.Strings(ids)
	return ids
}
