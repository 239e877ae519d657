package maxproto

// EventName — закрытое перечисление событий сервера.
// Значение вне перечисления не может быть зарегистрировано как обработчик.
type EventName uint8

const (
	EventInvalid EventName = iota

	EventAuthSuccess       // авторизация завершена
	EventAuthCodeRequested // сервер запросил код подтверждения
	EventAuthCodeChecked   // сервер проверил код
	EventAuthError         // ошибка авторизации (в т.ч. невалидный токен)
	EventAuthCodeError     // ошибка проверки кода
	EventMessageSent       // подтверждение отправки сообщения
	EventContactsUpdate    // присланы контакты
	EventChatsUpdate       // присланы чаты
	EventNewMessage        // входящее сообщение

	eventEnd // граница перечисления
)

func (e EventName) String() string {
	switch e {
	case EventAuthSuccess:
		return "auth_success"
	case EventAuthCodeRequested:
		return "auth_code_requested"
	case EventAuthCodeChecked:
		return "auth_code_checked"
	case EventAuthError:
		return "auth_error"
	case EventAuthCodeError:
		return "auth_code_error"
	case EventMessageSent:
		return "message_sent"
	case EventContactsUpdate:
		return "contacts_update"
	case EventChatsUpdate:
		return "chats_update"
	case EventNewMessage:
		return "new_message"
	default:
		return "invalid"
	}
}

// Valid сообщает, принадлежит ли значение перечислению событий.
func (e EventName) Valid() bool {
	return e > EventInvalid && e < eventEnd
}

type cmdOp struct {
	cmd    int
	opcode int
}

// таблица соответствия (cmd, opcode) -> событие
var eventTable = map[cmdOp]EventName{
	{CmdSuccess, OpAuthToken}: EventAuthSuccess,
	{CmdSuccess, OpAuthStart}: EventAuthCodeRequested,
	{CmdSuccess, OpAuthCheck}: EventAuthCodeChecked,
	{CmdSuccess, OpMsgSend}:   EventMessageSent,
	{CmdSuccess, OpContacts}:  EventContactsUpdate,
	{CmdSuccess, OpChats}:     EventChatsUpdate,
	{CmdError, OpAuthToken}:   EventAuthError,
	{CmdError, OpAuthStart}:   EventAuthCodeError,
	{CmdPush, OpNewMessage}:   EventNewMessage,
}

// EventFor возвращает событие для пары (cmd, opcode).
// Пары вне таблицы событий не порождают: ok == false.
func EventFor(cmd, opcode int) (EventName, bool) {
	ev, ok := eventTable[cmdOp{cmd: cmd, opcode: opcode}]
	return ev, ok
}
