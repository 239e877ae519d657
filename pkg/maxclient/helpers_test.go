package maxclient

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"example.com/maxbot/internal/session"
	"example.com/maxbot/pkg/maxproto"
)

// fakeSocket — wsConn без сети: push подсовывает входящие кадры,
// sent возвращает всё, что клиент записал.
type fakeSocket struct {
	in chan []byte

	mu      sync.Mutex
	wrote   [][]byte
	nonText bool

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-s.in:
		return websocket.TextMessage, data, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if messageType != websocket.TextMessage {
		s.nonText = true
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.wrote = append(s.wrote, cp)
	return nil
}

func (s *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error          { return nil }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) push(frame string) {
	s.in <- []byte(frame)
}

func (s *fakeSocket) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.wrote))
	copy(out, s.wrote)
	return out
}

func (s *fakeSocket) sentNonText() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonText
}

// waitSent ждёт, пока клиент запишет не меньше n кадров.
func (s *fakeSocket) waitSent(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.sent(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent frames, have %d", n, len(s.sent()))
	return nil
}

// fakeStore — session.Store в памяти, запоминает каждый Save.
// onSave, если задан, зовётся на каждом сохранении.
type fakeStore struct {
	mu     sync.Mutex
	data   session.Data
	found  bool
	saves  []session.Data
	onSave func(data session.Data)
}

func (fs *fakeStore) Load() (session.Data, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.found {
		return session.Defaults(), false, nil
	}
	return fs.data, true, nil
}

func (fs *fakeStore) Save(data session.Data) error {
	fs.mu.Lock()
	fs.data = data
	fs.found = true
	fs.saves = append(fs.saves, data)
	hook := fs.onSave
	fs.mu.Unlock()
	if hook != nil {
		hook(data)
	}
	return nil
}

func (fs *fakeStore) current() session.Data {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.data
}

func (fs *fakeStore) saveCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.saves)
}

// frameField достаёт поле из сериализованного кадра, падая, если
// поля нет.
func frameField(t *testing.T, frame []byte, path string) gjson.Result {
	t.Helper()
	res := gjson.GetBytes(frame, path)
	if !res.Exists() {
		t.Fatalf("frame %s: missing %q", frame, path)
	}
	return res
}

// countOpcodes считает кадры по опкодам.
func countOpcodes(frames [][]byte) map[int64]int {
	out := make(map[int64]int)
	for _, f := range frames {
		out[gjson.GetBytes(f, "opcode").Int()]++
	}
	return out
}

// newTestClient собирает клиента на фальшивом сокете с работающим
// циклом чтения. Сокет закрывается по завершении теста.
func newTestClient(t *testing.T, store session.Store) (*MaxClient, *fakeSocket) {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}

	c := New(Options{Store: store}, zerolog.Nop())
	if err := c.sess.Load(); err != nil {
		t.Fatal(err)
	}

	sock := newFakeSocket()
	c.mu.Lock()
	c.tr = newTransport(sock, zerolog.Nop())
	c.codec = maxproto.NewCodec(0)
	c.mu.Unlock()
	go c.listenLoop(c.tr)

	t.Cleanup(func() { _ = sock.Close() })
	return c, sock
}
