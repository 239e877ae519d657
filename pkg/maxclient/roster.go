package maxclient

import "sync"

// roster — справочник чатов и контактов, который клиент собирает из
// событий auth_success, chats_update и contacts_update. Все методы
// потокобезопасны: читают и обработчики событий, и код приложения.
type roster struct {
	mu    sync.RWMutex
	me    User
	meSet bool
	chats map[int64]Chat
	users map[int64]User
}

func newRoster() *roster {
	return &roster{
		chats: make(map[int64]Chat),
		users: make(map[int64]User),
	}
}

func (r *roster) setMe(u User) {
	r.mu.Lock()
	r.me = u
	r.meSet = true
	r.mu.Unlock()
}

func (r *roster) getMe() (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.me, r.meSet
}

func (r *roster) chat(id int64) (Chat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chats[id]
	return c, ok
}

func (r *roster) user(id int64) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *roster) hasChat(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.chats[id]
	return ok
}

func (r *roster) allChats() []Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Chat, 0, len(r.chats))
	for _, c := range r.chats {
		out = append(out, c)
	}
	return out
}

// updateChats кладёт чаты в справочник. Диалогам без заголовка
// подставляет имя собеседника, если тот уже известен.
func (r *roster) updateChats(chats []Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chats {
		if c.Type == ChatDialog && c.Title == "" {
			for pid := range c.Participants {
				if u, ok := r.users[pid]; ok && u.Name != "" {
					c.Title = u.Name
					break
				}
			}
		}
		r.chats[c.ID] = c
	}
}

// updateUsers кладёт контакты и дозаполняет заголовки диалогов,
// пришедших раньше своих участников.
func (r *roster) updateUsers(users []User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		r.users[u.ID] = u
		if chat, ok := r.chats[u.ID]; ok && chat.Title == "" && u.Name != "" {
			chat.Title = u.Name
			r.chats[u.ID] = chat
		}
	}
}

// contactIDs — id для начальной синхронизации контактов:
// сам пользователь плюс участники всех чатов, не больше limit.
func (r *roster) contactIDs(limit int) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]struct{})
	out := make([]int64, 0, limit)
	add := func(id int64) bool {
		if _, ok := seen[id]; ok {
			return true
		}
		if len(out) >= limit {
			return false
		}
		seen[id] = struct{}{}
		out = append(out, id)
		return true
	}

	if r.meSet {
		add(r.me.ID)
	}
	for _, c := range r.chats {
		for pid := range c.Participants {
			if !add(pid) {
				return out
			}
		}
	}
	return out
}
