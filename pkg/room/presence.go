package room

// Presence 房间在线用户，名字允许重复
type Presence struct {
	reg *Registry
}

// NewPresence 基于注册表创建在线用户视图
func NewPresence(reg *Registry) *Presence {
	return &Presence{reg: reg}
}

// Join 追加用户名，房间不存在时返回 false
func (p *Presence) Join(roomKey, name string) bool {
	return p.reg.update(roomKey, func(s *roomState) {
		s.users = append(s.users, name)
	})
}

// Leave 移除一个同名用户，未找到时返回 false
func (p *Presence) Leave(roomKey, name string) bool {
	removed := false
	p.reg.update(roomKey, func(s *roomState) {
		for i, u := range s.users {
			if u == name {
				s.users = append(s.users[:i], s.users[i+1:]...)
				removed = true
				return
			}
		}
	})
	return removed
}

// List 在线用户快照，房间不存在时返回空切片
func (p *Presence) List(roomKey string) []string {
	users := []string{}
	p.reg.view(roomKey, func(s *roomState) {
		users = append(users, s.users...)
	})
	return users
}
