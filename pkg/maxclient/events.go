package maxclient

import (
	"encoding/json"
	"fmt"
	"sync"

	"example.com/maxbot/pkg/maxproto"
)

// Handler получает сырой payload кадра. Ошибка обработчика прерывает
// доставку этого кадра остальным подписчикам и попадает в лог цикла
// чтения, само соединение при этом живёт дальше.
type Handler func(payload json.RawMessage) error

// HandlerID идентифицирует подписку для Off.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn Handler
}

// eventRegistry хранит подписчиков по событиям. Порядок вызова —
// порядок регистрации, один обработчик можно вешать несколько раз.
type eventRegistry struct {
	mu     sync.RWMutex
	nextID HandlerID
	byEv   map[maxproto.EventName][]registration
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{byEv: make(map[maxproto.EventName][]registration)}
}

func (r *eventRegistry) add(ev maxproto.EventName, fn Handler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.byEv[ev] = append(r.byEv[ev], registration{id: id, fn: fn})
	return id
}

func (r *eventRegistry) remove(ev maxproto.EventName, id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.byEv[ev]
	for i, reg := range regs {
		if reg.id == id {
			r.byEv[ev] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

func (r *eventRegistry) snapshot(ev maxproto.EventName) []registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.byEv[ev]
	if len(regs) == 0 {
		return nil
	}
	out := make([]registration, len(regs))
	copy(out, regs)
	return out
}

// On подписывает fn на событие протокола. Имя события проверяется
// при регистрации: опечатка всплывает сразу, а не молчащим хендлером.
func (c *MaxClient) On(ev maxproto.EventName, fn Handler) (HandlerID, error) {
	if !ev.Valid() {
		return 0, fmt.Errorf("maxclient: unknown event %d", ev)
	}
	if fn == nil {
		return 0, fmt.Errorf("maxclient: nil handler for event %s", ev)
	}
	return c.events.add(ev, fn), nil
}

// Off снимает подписку, полученную из On.
func (c *MaxClient) Off(ev maxproto.EventName, id HandlerID) bool {
	return c.events.remove(ev, id)
}
