package maxclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"example.com/maxbot/internal/metrics"
	"example.com/maxbot/internal/session"
)

// ========================= low-level =========================

// wsConn — срез методов *websocket.Conn, который нужен транспорту.
// В тестах подменяется фальшивым сокетом без сети.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// transport владеет одним WebSocket-соединением. Горутина readPump
// складывает кадры в канал глубины 1: пока Receive не забрал текущий
// кадр, следующий из сокета не читается.
type transport struct {
	sock wsConn
	log  zerolog.Logger

	wmu    sync.Mutex // сериализует запись в сокет
	frames chan []byte
	stop   chan struct{}
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

func dial(ctx context.Context, endpoint string, data session.Data, log zerolog.Logger) (*transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	sock, _, err := dialer.DialContext(ctx, endpoint, authHeaders(data))
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", endpoint, err)
	}
	sock.SetReadLimit(readLimit)

	t := newTransport(sock, log)
	metrics.SetConnected(true)
	return t, nil
}

func newTransport(sock wsConn, log zerolog.Logger) *transport {
	t := &transport{
		sock:   sock,
		log:    log.With().Str("part", "transport").Logger(),
		frames: make(chan []byte, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.readPump()
	return t
}

// заголовки рукопожатия, которые ждёт сервер
func authHeaders(data session.Data) http.Header {
	h := http.Header{}
	h.Set("Origin", "https://web.max.ru")
	h.Set("User-Agent", data.UserAgent)
	h.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	return h
}

func (t *transport) readPump() {
	defer close(t.done)
	for {
		_, data, err := t.sock.ReadMessage()
		if err != nil {
			t.closed.Store(true)
			return
		}
		metrics.RecordFrameIn()
		select {
		case t.frames <- data:
		case <-t.stop:
			return
		}
	}
}

// Receive отдаёт следующий кадр либо ErrTimeout, если за timeout
// ничего не пришло. После обрыва сначала выдаёт уже прочитанный
// кадр, если он остался в очереди, и только потом ErrClosed.
func (t *transport) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-t.frames:
		return data, nil
	case <-t.done:
		select {
		case data := <-t.frames:
			return data, nil
		default:
		}
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (t *transport) Send(data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_ = t.sock.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.sock.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws send: %w", err)
	}
	metrics.RecordFrameOut()
	return nil
}

func (t *transport) Close() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.stop)
		_ = t.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		_ = t.sock.Close()
		metrics.SetConnected(false)
	})
}

func (t *transport) IsOpen() bool {
	return !t.closed.Load()
}
