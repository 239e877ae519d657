// Package maxclient реализует WebSocket-клиент мессенджера MAX
// (wss://ws-api.oneme.ru). Клиент держит постоянное соединение,
// выполняет вход по сохранённому токену либо по телефону с кодом из SMS,
// автоматически переподключается и раскладывает входящие кадры по событиям.
//
// Высокоуровневые методы:
//
//   - SendMessage, SendSticker, SendReaction, EditMessage, DeleteMessage,
//     RequestChats, RequestContacts, а также доступ к справочнику
//     Me/Chats/Chat/User.
//
// События:
//   - колбэки-поля структуры: OnReady, OnNewMessage, OnMessageSent,
//     OnContactsUpdate, OnChatsUpdate;
//   - либо подписка на сырой payload через On/Off по имени события.
//
// Устойчивость:
//   - Запись в сокет сериализована (мьютекс + write-deadline).
//   - Чтение идёт через отдельную горутину с очередью глубины 1:
//     следующий кадр не читается, пока не обработан текущий.
//   - Run переподключается при обрыве и повторяет вход по токену.
//   - Отвергнутый сервером токен прозрачно переводит вход обратно
//     на телефон, если номер известен.
//
// Пример:
//
//	client := maxclient.New(maxclient.Options{}, log)
//	client.OnNewMessage = func(chatID int64, msg maxclient.Message) {
//	    fmt.Println(msg.Text)
//	}
//	ctx := context.Background()
//	code := func() (string, error) { return readLine("код из SMS: ") }
//	if err := client.Start(ctx, "+79990000000", code); err != nil {
//	    log.Fatal().Err(err).Msg("login failed")
//	}
//	defer client.Disconnect()
//
//	_ = client.SendMessage(chatID, "привет", "")
//	_ = client.Run(ctx) // блокируется, следит за соединением
package maxclient
