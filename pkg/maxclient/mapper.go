package maxclient

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ========================= разбор payload =========================
//
// Сервер присылает сущности в нескольких вариантах (контакт бывает
// обёрнут в {"contact": {...}}), поэтому поля достаём через gjson,
// а не жёсткой схемой.

func userFrom(res gjson.Result) User {
	if contact := res.Get("contact"); contact.Exists() {
		name := contact.Get("names.0")
		return User{
			ID:        contact.Get("id").Int(),
			Phone:     contact.Get("phone").Int(),
			Name:      name.Get("name").Str,
			FirstName: name.Get("firstName").Str,
			LastName:  name.Get("lastName").Str,
		}
	}
	name := res.Get("names.0")
	return User{
		ID:        res.Get("id").Int(),
		Phone:     res.Get("phone").Int(),
		Name:      name.Get("name").Str,
		FirstName: name.Get("firstName").Str,
		LastName:  name.Get("lastName").Str,
		PhotoID:   res.Get("photoId").Int(),
		BaseURL:   res.Get("baseUrl").Str,
	}
}

func messageFrom(res gjson.Result, chatID int64) Message {
	msg := Message{
		ID:     res.Get("id").Str,
		Text:   res.Get("text").Str,
		Sender: res.Get("sender").Int(),
		Time:   res.Get("time").Int(),
		ChatID: chatID,
		Type:   res.Get("type").Str,
	}
	if msg.Type == "" {
		msg.Type = "USER"
	}
	if attaches := res.Get("attaches"); attaches.Exists() {
		msg.Attaches = json.RawMessage(attaches.Raw)
	}
	return msg
}

func chatFrom(res gjson.Result) Chat {
	chat := Chat{
		ID:           res.Get("id").Int(),
		Type:         ChatType(res.Get("type").Str),
		Title:        res.Get("title").Str,
		Participants: make(map[int64]int64),
		Owner:        res.Get("owner").Int(),
		Created:      res.Get("created").Int(),
		Modified:     res.Get("modified").Int(),
		Status:       res.Get("status").Str,
	}
	if chat.Type == "" {
		chat.Type = ChatDialog
	}
	if chat.Status == "" {
		chat.Status = "ACTIVE"
	}
	res.Get("participants").ForEach(func(key, value gjson.Result) bool {
		chat.Participants[key.Int()] = value.Int()
		return true
	})
	if last := res.Get("lastMessage"); last.Exists() {
		msg := messageFrom(last, chat.ID)
		chat.LastMessage = &msg
	}
	return chat
}
