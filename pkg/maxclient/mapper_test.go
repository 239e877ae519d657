package maxclient

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestUserFromContactWrapped(t *testing.T) {
	res := gjson.Parse(`{"contact":{"id":10,"phone":79991234567,"names":[{"name":"Иван Петров","firstName":"Иван","lastName":"Петров"}],"photoId":5,"baseUrl":"https://img"}}`)
	u := userFrom(res)

	if u.ID != 10 || u.Phone != 79991234567 {
		t.Errorf("ids = %d/%d", u.ID, u.Phone)
	}
	if u.Name != "Иван Петров" || u.FirstName != "Иван" || u.LastName != "Петров" {
		t.Errorf("names = %q/%q/%q", u.Name, u.FirstName, u.LastName)
	}
	// у завёрнутого контакта фото не читается
	if u.PhotoID != 0 || u.BaseURL != "" {
		t.Errorf("photo = %d/%q, want zero", u.PhotoID, u.BaseURL)
	}
}

func TestUserFromPlain(t *testing.T) {
	res := gjson.Parse(`{"id":11,"names":[{"name":"Анна","firstName":"Анна"}],"photoId":77,"baseUrl":"https://img"}`)
	u := userFrom(res)

	if u.ID != 11 || u.Name != "Анна" {
		t.Errorf("user = %+v", u)
	}
	if u.PhotoID != 77 || u.BaseURL != "https://img" {
		t.Errorf("photo = %d/%q", u.PhotoID, u.BaseURL)
	}
}

func TestMessageFromDefaults(t *testing.T) {
	msg := messageFrom(gjson.Parse(`{"id":"m1","sender":5,"time":123}`), 42)

	if msg.ID != "m1" || msg.Sender != 5 || msg.Time != 123 || msg.ChatID != 42 {
		t.Errorf("message = %+v", msg)
	}
	if msg.Type != "USER" {
		t.Errorf("type = %q, want USER", msg.Type)
	}
	if msg.Attaches != nil {
		t.Errorf("attaches = %s, want nil", msg.Attaches)
	}
}

func TestMessageFromKeepsRawAttaches(t *testing.T) {
	msg := messageFrom(gjson.Parse(`{"id":"m2","attaches":[{"_type":"PHOTO","photoId":9}]}`), 1)

	if string(msg.Attaches) != `[{"_type":"PHOTO","photoId":9}]` {
		t.Errorf("attaches = %s", msg.Attaches)
	}
}

func TestChatFromDefaults(t *testing.T) {
	chat := chatFrom(gjson.Parse(`{"id":77}`))

	if chat.Type != ChatDialog {
		t.Errorf("type = %q, want DIALOG", chat.Type)
	}
	if chat.Status != "ACTIVE" {
		t.Errorf("status = %q, want ACTIVE", chat.Status)
	}
	if chat.Participants == nil || len(chat.Participants) != 0 {
		t.Errorf("participants = %v", chat.Participants)
	}
	if chat.LastMessage != nil {
		t.Error("lastMessage set for chat without one")
	}
}

func TestChatFromFull(t *testing.T) {
	chat := chatFrom(gjson.Parse(`{
		"id":88,"type":"CHAT","title":"Команда","owner":5,
		"created":100,"modified":200,"status":"LEFT",
		"participants":{"5":111,"6":222},
		"lastMessage":{"id":"m9","text":"пока","sender":6,"time":300}
	}`))

	if chat.Type != ChatGroup || chat.Title != "Команда" || chat.Owner != 5 {
		t.Errorf("chat = %+v", chat)
	}
	if chat.Status != "LEFT" {
		t.Errorf("status = %q", chat.Status)
	}
	if chat.Participants[5] != 111 || chat.Participants[6] != 222 {
		t.Errorf("participants = %v", chat.Participants)
	}
	if chat.LastMessage == nil || chat.LastMessage.Text != "пока" || chat.LastMessage.ChatID != 88 {
		t.Errorf("lastMessage = %+v", chat.LastMessage)
	}
}

func TestDisplayNames(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{ID: 1, Name: "Полное Имя", FirstName: "Полное"}, "Полное Имя"},
		{User{ID: 2, FirstName: "Имя", LastName: "Фамилия"}, "Имя Фамилия"},
		{User{ID: 3, FirstName: "Имя"}, "Имя"},
		{User{ID: 4, LastName: "Фамилия"}, "Фамилия"},
		{User{ID: 5}, "User 5"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}

	if got := (Chat{ID: 9, Title: "Чат"}).DisplayName(); got != "Чат" {
		t.Errorf("chat DisplayName = %q", got)
	}
	if got := (Chat{ID: 9}).DisplayName(); got != "Chat 9" {
		t.Errorf("chat DisplayName fallback = %q", got)
	}
}
