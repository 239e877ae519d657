package maxproto

import "encoding/json"

// DefaultVersion — версия протокола по умолчанию (поле ver).
const DefaultVersion = 11

// значения поля cmd
const (
	CmdPush    = 0 // пуш сервера; также ставится во все исходящие кадры
	CmdSuccess = 1 // успешный ответ
	CmdError   = 3 // ответ с ошибкой
)

// опкоды операций
const (
	OpEvents     = 5   // телеметрия (навигационные события)
	OpDeviceInit = 6   // инициализация устройства после коннекта
	OpAuthStart  = 17  // запрос кода по номеру телефона
	OpAuthCheck  = 18  // проверка кода из SMS
	OpAuthToken  = 19  // авторизация по токену
	OpMsgEdit    = 21  // правка сообщения
	OpMsgDelete  = 22  // удаление сообщения
	OpContacts   = 32  // запрос контактов
	OpChats      = 48  // запрос чатов
	OpMsgSend    = 64  // отправка сообщения
	OpNewMessage = 128 // пуш о новом сообщении
	OpReaction   = 178 // реакция на сообщение
)

// Frame — конверт одного кадра протокола.
type Frame struct {
	Ver     int             `json:"ver"`
	Cmd     int             `json:"cmd"`
	Seq     uint64          `json:"seq"`
	Opcode  int             `json:"opcode"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeError — кадр не разобрался. Ошибка уровня одного кадра:
// получатель пропускает кадр и продолжает чтение.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "maxproto: decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode разбирает входящий кадр. Любой некорректный вход — *DecodeError.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &f, nil
}

// Marshal сериализует кадр в проводной вид.
func (f *Frame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Event возвращает имя события для пары (cmd, opcode) кадра.
func (f *Frame) Event() (EventName, bool) {
	return EventFor(f.Cmd, f.Opcode)
}
