package maxclient

import (
	"time"

	"example.com/maxbot/pkg/maxproto"
)

// ========================= полезные нагрузки =========================
//
// Имена полей повторяют то, что шлёт веб-клиент, менять их нельзя.

type deviceUA struct {
	DeviceType      string `json:"deviceType"`
	Locale          string `json:"locale"`
	DeviceLocale    string `json:"deviceLocale"`
	OSVersion       string `json:"osVersion"`
	DeviceName      string `json:"deviceName"`
	HeaderUserAgent string `json:"headerUserAgent"`
	AppVersion      string `json:"appVersion"`
	Screen          string `json:"screen"`
	Timezone        string `json:"timezone"`
}

type deviceInitPayload struct {
	UserAgent deviceUA `json:"userAgent"`
	DeviceID  string   `json:"deviceId"`
}

type textMessage struct {
	Text     string `json:"text"`
	CID      int64  `json:"cid"`
	Elements []any  `json:"elements"`
	Attaches []any  `json:"attaches"`
	ReplyTo  string `json:"replyTo,omitempty"`
}

type stickerAttach struct {
	Type      string `json:"_type"`
	StickerID int64  `json:"stickerId"`
}

type stickerMessage struct {
	CID      int64           `json:"cid"`
	Attaches []stickerAttach `json:"attaches"`
	ReplyTo  string          `json:"replyTo,omitempty"`
}

type outMessage struct {
	ChatID  int64 `json:"chatId"`
	Message any   `json:"message"`
	Notify  bool  `json:"notify"`
}

type reactionInfo struct {
	ReactionType string `json:"reactionType"`
	ID           string `json:"id"`
}

type reactionPayload struct {
	ChatID    int64        `json:"chatId"`
	MessageID string       `json:"messageId"`
	Reaction  reactionInfo `json:"reaction"`
}

type editPayload struct {
	ChatID    int64  `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

type deletePayload struct {
	ChatID    int64  `json:"chatId"`
	MessageID string `json:"messageId"`
}

type chatsPayload struct {
	ChatIDs []int64 `json:"chatIds"`
}

type contactsPayload struct {
	ContactIDs []int64 `json:"contactIds"`
}

// TelemetryEvent — одно событие телеметрии веб-клиента (opcode 5).
type TelemetryEvent struct {
	Type string `json:"type"`
	Page int    `json:"page,omitempty"`
	Time int64  `json:"time"`
}

type eventsPayload struct {
	Events []TelemetryEvent `json:"events"`
}

type authStartPayload struct {
	Phone    string `json:"phone"`
	Type     string `json:"type"`
	Language string `json:"language"`
}

type authCodePayload struct {
	Token         string `json:"token"`
	VerifyCode    string `json:"verifyCode"`
	AuthTokenType string `json:"authTokenType"`
}

type authTokenPayload struct {
	Interactive  bool   `json:"interactive"`
	Token        string `json:"token"`
	ChatsCount   int    `json:"chatsCount"`
	ChatsSync    int    `json:"chatsSync"`
	ContactsSync int    `json:"contactsSync"`
	PresenceSync int    `json:"presenceSync"`
	DraftsSync   int    `json:"draftsSync"`
}

// ========================= high-level API =========================

// send нумерует кадр и пишет его в сокет.
func (c *MaxClient) send(opcode int, payload any) error {
	c.mu.Lock()
	tr := c.tr
	codec := c.codec
	c.mu.Unlock()
	if tr == nil || codec == nil {
		return ErrNotConnected
	}

	frame, err := codec.Next(maxproto.CmdPush, opcode, payload)
	if err != nil {
		return err
	}
	data, err := frame.Marshal()
	if err != nil {
		return err
	}
	return tr.Send(data)
}

// SendMessage отправляет текст в чат. replyTo — id сообщения, на
// которое отвечаем; пустая строка — обычное сообщение.
func (c *MaxClient) SendMessage(chatID int64, text, replyTo string) error {
	return c.send(maxproto.OpMsgSend, outMessage{
		ChatID: chatID,
		Message: textMessage{
			Text:     text,
			CID:      time.Now().UnixMilli(),
			Elements: []any{},
			Attaches: []any{},
			ReplyTo:  replyTo,
		},
		Notify: true,
	})
}

// SendSticker отправляет стикер; replyTo как у SendMessage.
func (c *MaxClient) SendSticker(chatID, stickerID int64, replyTo string) error {
	return c.send(maxproto.OpMsgSend, outMessage{
		ChatID: chatID,
		Message: stickerMessage{
			CID:      time.Now().UnixMilli(),
			Attaches: []stickerAttach{{Type: "STICKER", StickerID: stickerID}},
			ReplyTo:  replyTo,
		},
		Notify: true,
	})
}

// SendReaction ставит эмодзи-реакцию; пустая строка — 👍.
func (c *MaxClient) SendReaction(chatID int64, messageID, emoji string) error {
	if emoji == "" {
		emoji = defaultReaction
	}
	return c.send(maxproto.OpReaction, reactionPayload{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction:  reactionInfo{ReactionType: "EMOJI", ID: emoji},
	})
}

func (c *MaxClient) EditMessage(chatID int64, messageID, text string) error {
	return c.send(maxproto.OpMsgEdit, editPayload{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
}

func (c *MaxClient) DeleteMessage(chatID int64, messageID string) error {
	return c.send(maxproto.OpMsgDelete, deletePayload{
		ChatID:    chatID,
		MessageID: messageID,
	})
}

// RequestChats запрашивает свежие данные чатов; ответ придёт
// событием chats_update.
func (c *MaxClient) RequestChats(chatIDs ...int64) error {
	return c.send(maxproto.OpChats, chatsPayload{ChatIDs: chatIDs})
}

// RequestContacts запрашивает контакты; ответ — contacts_update.
func (c *MaxClient) RequestContacts(contactIDs ...int64) error {
	return c.send(maxproto.OpContacts, contactsPayload{ContactIDs: contactIDs})
}

// SendEvents шлёт пачку телеметрии одним кадром.
func (c *MaxClient) SendEvents(events ...TelemetryEvent) error {
	return c.send(maxproto.OpEvents, eventsPayload{Events: events})
}

// SendAuthStart начинает вход по телефону: сервер пришлёт SMS.
func (c *MaxClient) SendAuthStart(phone string) error {
	return c.send(maxproto.OpAuthStart, authStartPayload{
		Phone:    phone,
		Type:     "START_AUTH",
		Language: defaultLanguage,
	})
}

// SendAuthCode подтверждает код из SMS. token — временный токен из
// события auth_code_requested.
func (c *MaxClient) SendAuthCode(token, code string) error {
	return c.send(maxproto.OpAuthCheck, authCodePayload{
		Token:         token,
		VerifyCode:    code,
		AuthTokenType: "CHECK_CODE",
	})
}

// SendAuthToken выполняет неинтерактивный вход по токену.
func (c *MaxClient) SendAuthToken(token string) error {
	return c.send(maxproto.OpAuthToken, authTokenPayload{
		Interactive: false,
		Token:       token,
		ChatsCount:  defaultChatsCount,
	})
}

// sendDeviceInit представляется серверу сразу после рукопожатия.
func (c *MaxClient) sendDeviceInit() error {
	data := c.sess.Snapshot()
	return c.send(maxproto.OpDeviceInit, deviceInitPayload{
		UserAgent: deviceUA{
			DeviceType:      data.DeviceType,
			Locale:          data.Locale,
			DeviceLocale:    data.DeviceLocale,
			OSVersion:       data.OSVersion,
			DeviceName:      data.DeviceName,
			HeaderUserAgent: data.UserAgent,
			AppVersion:      data.AppVersion,
			Screen:          data.Screen,
			Timezone:        data.Timezone,
		},
		DeviceID: data.DeviceID,
	})
}
