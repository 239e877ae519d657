package maxclient

import (
	"encoding/json"
	"fmt"
)

// ChatType — тип беседы, как его присылает сервер.
type ChatType string

const (
	ChatDialog  ChatType = "DIALOG"
	ChatGroup   ChatType = "CHAT"
	ChatChannel ChatType = "CHANNEL"
)

// User — контакт из адресной книги либо собственный профиль.
type User struct {
	ID        int64
	Phone     int64
	Name      string
	FirstName string
	LastName  string
	PhotoID   int64
	BaseURL   string
}

// DisplayName — имя для показа человеку.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.FirstName != "" || u.LastName != "" {
		if u.FirstName == "" {
			return u.LastName
		}
		if u.LastName == "" {
			return u.FirstName
		}
		return u.FirstName + " " + u.LastName
	}
	return fmt.Sprintf("User %d", u.ID)
}

// Message — одно сообщение. Attaches оставлены сырым JSON:
// состав вложений у сервера разнородный, разбирает их приложение.
type Message struct {
	ID       string
	Text     string
	Sender   int64
	Time     int64
	ChatID   int64
	Type     string
	Attaches json.RawMessage
}

// Chat — диалог, группа или канал. Participants: id участника ->
// время последнего прочтения.
type Chat struct {
	ID           int64
	Type         ChatType
	Title        string
	Participants map[int64]int64
	LastMessage  *Message
	Owner        int64
	Created      int64
	Modified     int64
	Status       string
}

// DisplayName — заголовок чата либо заглушка по id.
func (c Chat) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("Chat %d", c.ID)
}
