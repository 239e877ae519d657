package maxclient

import (
	"errors"
	"fmt"

	"example.com/maxbot/internal/metrics"
	"example.com/maxbot/pkg/maxproto"
)

// listenLoop — единственный читатель соединения. Кадры обрабатываются
// строго по одному: следующий Receive не начинается, пока не отработали
// все обработчики текущего кадра. Ошибки обработчиков и битые кадры
// цикл переживает, закрытое соединение — нет: тогда цикл завершается,
// а переподключением занимается Run.
func (c *MaxClient) listenLoop(tr *transport) {
	defer tr.Close()

	for {
		data, err := tr.Receive(receiveWait)
		switch {
		case err == nil:
		case errors.Is(err, ErrTimeout):
			continue
		case errors.Is(err, ErrClosed):
			c.log.Warn().Msg("websocket connection closed")
			c.auth.failPending(ErrClosed)
			return
		default:
			c.log.Warn().Err(err).Msg("receive failed")
			continue
		}

		frame, err := maxproto.Decode(data)
		if err != nil {
			metrics.RecordDecodeError()
			c.log.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}
		if err := c.dispatch(frame); err != nil {
			c.log.Warn().Err(err).Msg("event handler failed")
		}
	}
}

// dispatch вызывает обработчиков события по порядку регистрации.
// Первая же ошибка прерывает доставку кадра остальным.
func (c *MaxClient) dispatch(f *maxproto.Frame) error {
	ev, ok := f.Event()
	if !ok {
		c.log.Trace().Int("cmd", f.Cmd).Int("opcode", f.Opcode).Msg("frame without event mapping")
		return nil
	}
	for _, reg := range c.events.snapshot(ev) {
		if err := reg.fn(f.Payload); err != nil {
			return fmt.Errorf("%s: %w", ev, err)
		}
	}
	return nil
}
