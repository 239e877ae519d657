// Package session хранит идентичность клиента между запусками:
// параметры устройства для рукопожатия, токен и номер телефона.
// Данные лежат одним JSON-объектом — в файле или в строке sqlite.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// Data — сериализуемое состояние сессии. Имена полей фиксированы
// форматом файла, менять их нельзя.
type Data struct {
	DeviceID     string `json:"device_id"`
	UserAgent    string `json:"user_agent"`
	AppVersion   string `json:"app_version"`
	DeviceType   string `json:"device_type"`
	Locale       string `json:"locale"`
	DeviceLocale string `json:"device_locale"`
	OSVersion    string `json:"os_version"`
	DeviceName   string `json:"device_name"`
	Screen       string `json:"screen"`
	Timezone     string `json:"timezone"`
	Version      int    `json:"version"`
	Token        string `json:"token"`
	Phone        string `json:"phone"`
}

// Defaults возвращает свежую сессию с новым device id.
func Defaults() Data {
	return Data{
		DeviceID:     uuid.NewString(),
		UserAgent:    defaultUserAgent,
		AppVersion:   "25.12.3",
		DeviceType:   "ANDROID",
		Locale:       "ru",
		DeviceLocale: "ru",
		OSVersion:    "Windows",
		DeviceName:   "Chrome",
		Screen:       "1080x1920 1.0x",
		Timezone:     "Europe/Moscow",
		Version:      11,
	}
}

// Store — место, где сессия лежит между запусками.
// Load возвращает found=false, если сохранённой сессии ещё нет:
// тогда Data содержит значения по умолчанию.
type Store interface {
	Load() (data Data, found bool, err error)
	Save(data Data) error
}

// Session — потокобезопасная обёртка над Store.
// Save не прерывает вызывающего: ошибка записи логируется
// и возвращается, но клиент продолжает работать с копией в памяти.
type Session struct {
	mu    sync.RWMutex
	data  Data
	store Store
	log   zerolog.Logger
}

func New(store Store, log zerolog.Logger) *Session {
	return &Session{
		data:  Defaults(),
		store: store,
		log:   log.With().Str("part", "session").Logger(),
	}
}

// Load читает сессию из хранилища. Если её там нет — сразу
// сохраняет сгенерированные значения, чтобы device id пережил рестарт.
func (s *Session) Load() error {
	data, found, err := s.store.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	if !found {
		s.log.Debug().Str("device_id", data.DeviceID).Msg("created new session")
		return s.Save()
	}
	return nil
}

func (s *Session) Save() error {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	if err := s.store.Save(data); err != nil {
		s.log.Warn().Err(err).Msg("session save failed")
		return err
	}
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.data.Token = token
	s.mu.Unlock()
}

func (s *Session) Phone() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Phone
}

func (s *Session) SetPhone(phone string) {
	s.mu.Lock()
	s.data.Phone = phone
	s.mu.Unlock()
}

// Snapshot отдаёт копию всей сессии для построения заголовков
// и пейлоадов рукопожатия.
func (s *Session) Snapshot() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}
