// Package maxproto реализует кадровый протокол WebSocket API мессенджера MAX.
//
// Каждый кадр — текстовый JSON-конверт вида:
//
//	{"ver":11,"cmd":0,"seq":3,"opcode":64,"payload":{...}}
//
//   - ver    — версия протокола (берётся из сессии, сейчас 11);
//   - cmd    — направление/исход: 0 пуш (и все исходящие), 1 успех, 3 ошибка;
//   - seq    — порядковый номер исходящего кадра, с 1 и строго +1
//     на всё время жизни клиента (входящий seq назначается сервером
//     и никак не проверяется);
//   - opcode — код операции (см. константы Op*);
//   - payload — произвольный JSON-объект операции, может отсутствовать.
//
// Codec штампует исходящие кадры (ver + следующий seq), Decode разбирает
// входящие: любой некорректный JSON возвращается как *DecodeError — такую
// ошибку можно (и нужно) пережить, пропустив кадр.
//
// Имена событий сервера выводятся из пары (cmd, opcode) таблицей EventFor:
// перечисление EventName закрыто, пары вне таблицы событием не являются.
package maxproto
