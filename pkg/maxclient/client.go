package maxclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"example.com/maxbot/internal/metrics"
	"example.com/maxbot/internal/session"
	"example.com/maxbot/pkg/maxproto"
)

const (
	// DefaultEndpoint — боевой WebSocket-шлюз MAX.
	DefaultEndpoint = "wss://ws-api.oneme.ru/websocket"

	defaultSessionFile = "conf/session.maximus"
	defaultChatsCount  = 40
	defaultLanguage    = "ru"
	defaultReaction    = "👍"
	maxContactsSync    = 50

	reconnectDelay = 2 * time.Second        // пауза перед новым коннектом
	authDelay      = 500 * time.Millisecond // пауза между рукопожатием и входом
	reconnectCool  = 5 * time.Second        // пауза после неудачного реконнекта
	authTimeout    = 60 * time.Second       // потолок ожидания входа
	receiveWait    = time.Second            // шаг ожидания кадра в цикле чтения
	pollInterval   = time.Second            // шаг проверки соединения в Run
	dialTimeout    = 10 * time.Second
	writeWait      = 5 * time.Second
	readLimit      = 64 << 20
)

// Options настраивает клиента. Нулевое значение пригодно к работе:
// боевой шлюз и файловое хранилище сессии рядом с ботом.
type Options struct {
	// Endpoint — адрес WebSocket-шлюза.
	Endpoint string
	// Store — где хранить сессию между запусками.
	Store session.Store
}

// MaxClient — клиент мессенджера MAX. Создаётся через New, живёт
// от Start до Disconnect.
type MaxClient struct {
	endpoint string
	log      zerolog.Logger

	sess   *session.Session
	roster *roster
	events *eventRegistry
	auth   *authManager

	mu    sync.Mutex // закрывает tr и codec
	tr    *transport
	codec *maxproto.Codec

	// Колбэки приложения. Задаются до Start, зовутся из цикла чтения:
	// пока колбэк работает, следующий кадр не обрабатывается.
	OnReady          func(me User)
	OnNewMessage     func(chatID int64, msg Message)
	OnMessageSent    func(chatID int64, msg Message)
	OnContactsUpdate func(users []User)
	OnChatsUpdate    func(chats []Chat)
}

func New(opts Options, log zerolog.Logger) *MaxClient {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Store == nil {
		opts.Store = session.NewFileStore(defaultSessionFile)
	}

	c := &MaxClient{
		endpoint: opts.Endpoint,
		log:      log.With().Str("component", "maxclient").Logger(),
		roster:   newRoster(),
		events:   newEventRegistry(),
	}
	c.sess = session.New(opts.Store, log)
	c.auth = newAuthManager(c)

	// порядок важен: справочник наполняется раньше, чем разрешится
	// ожидание входа, иначе Start начнёт синхронизацию по пустому
	c.bindHandlers()
	c.auth.bind(c.events)
	return c
}

func (c *MaxClient) bindHandlers() {
	c.events.add(maxproto.EventAuthSuccess, c.onAuthSuccess)
	c.events.add(maxproto.EventNewMessage, c.onNewMessage)
	c.events.add(maxproto.EventMessageSent, c.onMessageSent)
	c.events.add(maxproto.EventContactsUpdate, c.onContactsUpdate)
	c.events.add(maxproto.EventChatsUpdate, c.onChatsUpdate)
}

// Start подключается и выполняет вход. Телефон и колбэк кода нужны
// только для первого запуска: дальше хватает сохранённого токена.
// Блокируется до завершения входа.
func (c *MaxClient) Start(ctx context.Context, phone string, codeFn CodeFunc) error {
	if err := c.sess.Load(); err != nil {
		return err
	}

	// нумерация кадров живёт от Start до конца процесса
	// и реконнекты не переживает заново: seq никогда не сбрасывается
	c.mu.Lock()
	c.codec = maxproto.NewCodec(c.sess.Snapshot().Version)
	c.mu.Unlock()

	c.log.Info().Str("endpoint", c.endpoint).Msg("connecting")
	if err := c.connect(ctx); err != nil {
		return err
	}
	if err := c.auth.authenticate(ctx, phone, codeFn); err != nil {
		return err
	}
	c.syncAfterAuth()
	return nil
}

func (c *MaxClient) connect(ctx context.Context) error {
	tr, err := dial(ctx, c.endpoint, c.sess.Snapshot(), c.log)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()

	if err := c.sendDeviceInit(); err != nil {
		tr.Close()
		return err
	}
	go c.listenLoop(tr)
	return nil
}

// Run держит соединение живым: раз в секунду проверяет его и при
// обрыве переподключается с повтором входа по токену. Блокируется,
// пока жив ctx.
func (c *MaxClient) Run(ctx context.Context) error {
	for {
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return err
		}
		if c.IsConnected() {
			continue
		}

		c.log.Warn().Msg("connection lost, reconnecting")
		if err := c.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Msg("reconnect failed")
			if err := sleepCtx(ctx, reconnectCool); err != nil {
				return err
			}
		}
	}
}

func (c *MaxClient) reconnect(ctx context.Context) error {
	metrics.RecordReconnect()
	if err := sleepCtx(ctx, reconnectDelay); err != nil {
		return err
	}
	if err := c.connect(ctx); err != nil {
		return err
	}

	token := c.sess.Token()
	if token == "" {
		c.log.Warn().Msg("no stored token, waiting for manual login")
		return nil
	}
	if err := sleepCtx(ctx, authDelay); err != nil {
		return err
	}
	// вход после реконнекта не ждёт исхода: auth_success обработают
	// обычные обработчики, а отвергнутый токен уйдёт в re-auth сам
	if err := c.SendAuthToken(token); err != nil {
		return err
	}
	c.log.Info().Msg("reconnected, token auth sent")
	return nil
}

// Disconnect закрывает соединение. Запущенный Run после этого начнёт
// переподключаться, так что сперва отмените его контекст.
func (c *MaxClient) Disconnect() {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr != nil {
		tr.Close()
	}
}

func (c *MaxClient) IsConnected() bool {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	return tr != nil && tr.IsOpen()
}

// Me — собственный профиль после входа.
func (c *MaxClient) Me() (User, bool) {
	return c.roster.getMe()
}

// Chats — известные клиенту чаты.
func (c *MaxClient) Chats() []Chat {
	return c.roster.allChats()
}

// Chat — чат по id, если уже известен.
func (c *MaxClient) Chat(id int64) (Chat, bool) {
	return c.roster.chat(id)
}

// User — контакт по id, если уже известен.
func (c *MaxClient) User(id int64) (User, bool) {
	return c.roster.user(id)
}

// syncAfterAuth — начальная синхронизация: обновляем служебный чат
// и подтягиваем профили участников всех чатов.
func (c *MaxClient) syncAfterAuth() {
	if c.roster.hasChat(0) {
		if err := c.RequestChats(0); err != nil {
			c.log.Warn().Err(err).Msg("chats sync failed")
		}
	}
	if ids := c.roster.contactIDs(maxContactsSync); len(ids) > 0 {
		if err := c.RequestContacts(ids...); err != nil {
			c.log.Warn().Err(err).Msg("contacts sync failed")
		}
	}
}

// ========================= обработчики событий =========================

func (c *MaxClient) onAuthSuccess(payload json.RawMessage) error {
	if contact := gjson.GetBytes(payload, "profile.contact"); contact.Exists() {
		me := userFrom(contact)
		c.roster.setMe(me)
		c.log.Info().Int64("id", me.ID).Str("name", me.DisplayName()).Msg("logged in")
	}

	var chats []Chat
	gjson.GetBytes(payload, "chats").ForEach(func(_, value gjson.Result) bool {
		chats = append(chats, chatFrom(value))
		return true
	})
	if len(chats) > 0 {
		c.roster.updateChats(chats)
		c.log.Info().Int("count", len(chats)).Msg("chats loaded")
	}

	if c.OnReady != nil {
		if me, ok := c.roster.getMe(); ok {
			c.OnReady(me)
		}
	}
	return nil
}

func (c *MaxClient) onNewMessage(payload json.RawMessage) error {
	chatID := gjson.GetBytes(payload, "chatId")
	msgData := gjson.GetBytes(payload, "message")
	if !chatID.Exists() || !msgData.Exists() {
		return nil
	}
	if c.OnNewMessage != nil {
		c.OnNewMessage(chatID.Int(), messageFrom(msgData, chatID.Int()))
	}
	return nil
}

func (c *MaxClient) onMessageSent(payload json.RawMessage) error {
	chatID := gjson.GetBytes(payload, "chatId")
	msgData := gjson.GetBytes(payload, "message")
	if !chatID.Exists() || !msgData.Exists() {
		return nil
	}
	if c.OnMessageSent != nil {
		c.OnMessageSent(chatID.Int(), messageFrom(msgData, chatID.Int()))
	}
	return nil
}

func (c *MaxClient) onContactsUpdate(payload json.RawMessage) error {
	var users []User
	gjson.GetBytes(payload, "contacts").ForEach(func(_, value gjson.Result) bool {
		users = append(users, userFrom(value))
		return true
	})
	if len(users) == 0 {
		return nil
	}
	c.roster.updateUsers(users)
	if c.OnContactsUpdate != nil {
		c.OnContactsUpdate(users)
	}
	return nil
}

func (c *MaxClient) onChatsUpdate(payload json.RawMessage) error {
	var chats []Chat
	gjson.GetBytes(payload, "chats").ForEach(func(_, value gjson.Result) bool {
		chats = append(chats, chatFrom(value))
		return true
	})
	if len(chats) == 0 {
		return nil
	}
	c.roster.updateChats(chats)
	if c.OnChatsUpdate != nil {
		c.OnChatsUpdate(chats)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
