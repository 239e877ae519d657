package maxclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"example.com/maxbot/internal/session"
)

func preloadedStore(mutate func(d *session.Data)) *fakeStore {
	st := &fakeStore{}
	d := session.Defaults()
	mutate(&d)
	st.data, st.found = d, true
	return st
}

func startAuth(c *MaxClient, phone string, codeFn CodeFunc) chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.auth.authenticate(context.Background(), phone, codeFn) }()
	return errCh
}

func waitAuth(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("authenticate did not return")
		return nil
	}
}

func TestAuthTokenFastPath(t *testing.T) {
	st := preloadedStore(func(d *session.Data) { d.Token = "TOK" })
	c, sock := newTestClient(t, st)

	errCh := startAuth(c, "", nil)

	frames := sock.waitSent(t, 1)
	f := frames[0]
	if got := frameField(t, f, "opcode").Int(); got != 19 {
		t.Fatalf("opcode = %d, want 19", got)
	}
	if got := frameField(t, f, "cmd").Int(); got != 0 {
		t.Errorf("cmd = %d, want 0", got)
	}
	if got := frameField(t, f, "ver").Int(); got != 11 {
		t.Errorf("ver = %d, want 11", got)
	}
	if got := frameField(t, f, "seq").Int(); got != 1 {
		t.Errorf("seq = %d, want 1", got)
	}
	if frameField(t, f, "payload.interactive").Bool() {
		t.Error("interactive = true, want false")
	}
	if got := frameField(t, f, "payload.token").Str; got != "TOK" {
		t.Errorf("token = %q, want TOK", got)
	}
	if got := frameField(t, f, "payload.chatsCount").Int(); got != 40 {
		t.Errorf("chatsCount = %d, want 40", got)
	}
	for _, key := range []string{"chatsSync", "contactsSync", "presenceSync", "draftsSync"} {
		if got := frameField(t, f, "payload."+key).Int(); got != 0 {
			t.Errorf("%s = %d, want 0", key, got)
		}
	}

	sock.push(`{"ver":11,"cmd":1,"seq":1,"opcode":19,"payload":{"token":"TOK","profile":{"contact":{"id":1,"names":[{"name":"Я"}]}},"chats":[{"id":0,"type":"CHAT"}]}}`)
	if err := waitAuth(t, errCh); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	// к возврату authenticate справочник уже наполнен
	if me, ok := c.Me(); !ok || me.ID != 1 {
		t.Errorf("me = %+v, ok = %v", me, ok)
	}
	if !c.roster.hasChat(0) {
		t.Error("chat 0 not loaded")
	}

	time.Sleep(50 * time.Millisecond)
	if n := len(sock.sent()); n != 1 {
		t.Errorf("sent %d frames, want 1", n)
	}
	if st.current().Token != "TOK" {
		t.Errorf("stored token = %q", st.current().Token)
	}
}

func TestAuthPhoneFlow(t *testing.T) {
	st := &fakeStore{}
	c, sock := newTestClient(t, st)

	// на каком по счёту исходящем кадре телефон впервые попал на диск
	var phoneSavedAt atomic.Int32
	phoneSavedAt.Store(-1)
	st.onSave = func(d session.Data) {
		if d.Phone != "" && phoneSavedAt.Load() == -1 {
			phoneSavedAt.Store(int32(len(sock.sent())))
		}
	}

	errCh := startAuth(c, "+79991112233", func() (string, error) { return "1234", nil })

	frames := sock.waitSent(t, 3)
	if got := frameField(t, frames[0], "opcode").Int(); got != 17 {
		t.Fatalf("first frame opcode = %d, want 17", got)
	}
	if got := frameField(t, frames[0], "payload.phone").Str; got != "+79991112233" {
		t.Errorf("phone = %q", got)
	}
	if got := frameField(t, frames[0], "payload.type").Str; got != "START_AUTH" {
		t.Errorf("type = %q", got)
	}
	if got := frameField(t, frames[0], "payload.language").Str; got != "ru" {
		t.Errorf("language = %q", got)
	}
	if at := phoneSavedAt.Load(); at != 0 {
		t.Errorf("phone persisted after %d frames already sent, want before first", at)
	}

	// телеметрия: два кадра, в каждом ровно одно событие
	wantTypes := []string{"COLD_START", "GO"}
	for i, f := range frames[1:3] {
		if got := frameField(t, f, "opcode").Int(); got != 5 {
			t.Fatalf("telemetry frame %d opcode = %d, want 5", i, got)
		}
		events := frameField(t, f, "payload.events").Array()
		if len(events) != 1 {
			t.Fatalf("telemetry frame %d carries %d events, want 1", i, len(events))
		}
		if got := events[0].Get("type").Str; got != wantTypes[i] {
			t.Errorf("telemetry frame %d type = %q, want %q", i, got, wantTypes[i])
		}
		if events[0].Get("time").Int() <= 0 {
			t.Errorf("telemetry frame %d event time missing", i)
		}
	}
	if gjson.GetBytes(frames[1], "payload.events.0.page").Exists() {
		t.Error("COLD_START event carries a page")
	}
	if got := frameField(t, frames[2], "payload.events.0.page").Int(); got != 1 {
		t.Errorf("GO page = %d, want 1", got)
	}

	sock.push(`{"ver":11,"cmd":1,"seq":1,"opcode":17,"payload":{"token":"tmp-token"}}`)
	frames = sock.waitSent(t, 4)
	if got := frameField(t, frames[3], "opcode").Int(); got != 18 {
		t.Fatalf("verify frame opcode = %d, want 18", got)
	}
	if got := frameField(t, frames[3], "payload.token").Str; got != "tmp-token" {
		t.Errorf("verify token = %q", got)
	}
	if got := frameField(t, frames[3], "payload.verifyCode").Str; got != "1234" {
		t.Errorf("verifyCode = %q", got)
	}
	if got := frameField(t, frames[3], "payload.authTokenType").Str; got != "CHECK_CODE" {
		t.Errorf("authTokenType = %q", got)
	}

	sock.push(`{"ver":11,"cmd":1,"seq":2,"opcode":18,"payload":{"tokenAttrs":{"LOGIN":{"token":"PERM"}}}}`)
	frames = sock.waitSent(t, 5)
	if got := frameField(t, frames[4], "opcode").Int(); got != 19 {
		t.Fatalf("login frame opcode = %d, want 19", got)
	}
	if got := frameField(t, frames[4], "payload.token").Str; got != "PERM" {
		t.Errorf("login token = %q", got)
	}
	// токен лёг на диск раньше, чем ушёл кадр входа
	if got := st.current().Token; got != "PERM" {
		t.Errorf("stored token = %q, want PERM", got)
	}

	sock.push(`{"ver":11,"cmd":1,"seq":3,"opcode":19,"payload":{"token":"PERM"}}`)
	if err := waitAuth(t, errCh); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if got := st.current().Phone; got != "+79991112233" {
		t.Errorf("stored phone = %q", got)
	}
	for i, f := range sock.sent() {
		if got := frameField(t, f, "seq").Int(); got != int64(i+1) {
			t.Errorf("frame %d seq = %d, want %d", i, got, i+1)
		}
	}
}

func TestAuthReauthAfterTokenRejected(t *testing.T) {
	st := preloadedStore(func(d *session.Data) {
		d.Token = "OLD"
		d.Phone = "+79995556677"
	})
	c, sock := newTestClient(t, st)

	errCh := startAuth(c, "", nil)
	sock.waitSent(t, 1)

	sock.push(`{"ver":11,"cmd":3,"seq":1,"opcode":19,"payload":{"error":"login.token","message":"FAIL_LOGIN_TOKEN"}}`)

	frames := sock.waitSent(t, 4)
	if got := frameField(t, frames[1], "opcode").Int(); got != 17 {
		t.Fatalf("re-auth frame opcode = %d, want 17", got)
	}
	if got := frameField(t, frames[1], "payload.phone").Str; got != "+79995556677" {
		t.Errorf("re-auth phone = %q", got)
	}
	// отвергнутый токен стёрт ещё до повторного старта
	if got := st.current().Token; got != "" {
		t.Errorf("stored token = %q, want empty", got)
	}

	sock.push(`{"ver":11,"cmd":1,"seq":2,"opcode":19,"payload":{"token":"NEW"}}`)
	if err := waitAuth(t, errCh); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if got := st.current().Token; got != "NEW" {
		t.Errorf("stored token = %q, want NEW", got)
	}

	// ровно один повторный цикл: один старт и одна пара телеметрии
	time.Sleep(50 * time.Millisecond)
	ops := countOpcodes(sock.sent())
	if ops[19] != 1 || ops[17] != 1 || ops[5] != 2 {
		t.Errorf("opcode counts = %v, want one 19, one 17, two 5", ops)
	}
	for i, f := range sock.sent() {
		if got := frameField(t, f, "seq").Int(); got != int64(i+1) {
			t.Errorf("frame %d seq = %d, want %d", i, got, i+1)
		}
	}
}

func TestAuthReauthWithoutPhoneFails(t *testing.T) {
	st := preloadedStore(func(d *session.Data) { d.Token = "OLD" })
	c, sock := newTestClient(t, st)

	errCh := startAuth(c, "", nil)
	sock.waitSent(t, 1)

	sock.push(`{"ver":11,"cmd":3,"seq":1,"opcode":19,"payload":{"error":"login.token","message":"FAIL_LOGIN_TOKEN"}}`)

	err := waitAuth(t, errCh)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	if ae.Code != "login.token" {
		t.Errorf("code = %q", ae.Code)
	}
	if st.current().Token != "" {
		t.Errorf("stored token = %q, want empty", st.current().Token)
	}

	time.Sleep(50 * time.Millisecond)
	if n := len(sock.sent()); n != 1 {
		t.Errorf("sent %d frames, want 1 (no re-auth without phone)", n)
	}
}

func TestAuthErrorGeneric(t *testing.T) {
	st := preloadedStore(func(d *session.Data) { d.Token = "TOK" })
	c, sock := newTestClient(t, st)

	errCh := startAuth(c, "", nil)
	sock.waitSent(t, 1)

	sock.push(`{"ver":11,"cmd":3,"seq":1,"opcode":19,"payload":{"error":"conn.limit","message":"connection limit"}}`)

	err := waitAuth(t, errCh)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	if ae.Code != "conn.limit" || ae.Message != "connection limit" {
		t.Errorf("auth error = %+v", ae)
	}
	if errors.Is(err, ErrTooManyAttempts) {
		t.Error("generic error classified as rate limit")
	}
	// токен при не-токен-ошибке не трогается
	if st.current().Token != "TOK" {
		t.Errorf("stored token = %q, want TOK", st.current().Token)
	}
}

func TestAuthCodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantMsg   string
		wantLimit bool
	}{
		{
			name:      "rate limited",
			payload:   `{"error":"error.limit.violate","localizedMessage":"Слишком много попыток"}`,
			wantMsg:   "Слишком много попыток",
			wantLimit: true,
		},
		{
			name:    "wrong code falls back to message",
			payload: `{"error":"verify.code","message":"wrong code"}`,
			wantMsg: "wrong code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sock := newTestClient(t, &fakeStore{})

			errCh := startAuth(c, "+79990001122", func() (string, error) { return "0000", nil })
			sock.waitSent(t, 3)

			sock.push(`{"ver":11,"cmd":1,"seq":1,"opcode":17,"payload":{"token":"tmp"}}`)
			sock.waitSent(t, 4)

			sock.push(`{"ver":11,"cmd":3,"seq":2,"opcode":17,"payload":` + tt.payload + `}`)

			err := waitAuth(t, errCh)
			var ae *AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want *AuthError", err)
			}
			if ae.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", ae.Message, tt.wantMsg)
			}
			if got := errors.Is(err, ErrTooManyAttempts); got != tt.wantLimit {
				t.Errorf("Is(ErrTooManyAttempts) = %v, want %v", got, tt.wantLimit)
			}
		})
	}
}

// Вход без колбэка кода: клиент ждёт, пока код подтвердят на другом
// устройстве, и завершает вход по токену из auth_code_checked.
func TestAuthOutOfBandCode(t *testing.T) {
	st := &fakeStore{}
	c, sock := newTestClient(t, st)

	errCh := startAuth(c, "+79993334455", nil)
	sock.waitSent(t, 3)

	sock.push(`{"ver":11,"cmd":1,"seq":1,"opcode":17,"payload":{"token":"tmp"}}`)
	time.Sleep(50 * time.Millisecond)
	if n := len(sock.sent()); n != 3 {
		t.Fatalf("sent %d frames, want 3 (no verify without code callback)", n)
	}

	// подтверждение без токена ничего не запускает
	sock.push(`{"ver":11,"cmd":1,"seq":2,"opcode":18,"payload":{}}`)
	time.Sleep(50 * time.Millisecond)
	if n := len(sock.sent()); n != 3 {
		t.Fatalf("sent %d frames after empty code_checked, want 3", n)
	}

	sock.push(`{"ver":11,"cmd":1,"seq":3,"opcode":18,"payload":{"tokenAttrs":{"LOGIN":{"token":"OOB"}}}}`)
	frames := sock.waitSent(t, 4)
	if got := frameField(t, frames[3], "opcode").Int(); got != 19 {
		t.Fatalf("opcode = %d, want 19", got)
	}
	if got := frameField(t, frames[3], "payload.token").Str; got != "OOB" {
		t.Errorf("token = %q, want OOB", got)
	}

	sock.push(`{"ver":11,"cmd":1,"seq":4,"opcode":19,"payload":{"token":"OOB"}}`)
	if err := waitAuth(t, errCh); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if st.current().Token != "OOB" {
		t.Errorf("stored token = %q, want OOB", st.current().Token)
	}
}

func TestAuthNoCredentials(t *testing.T) {
	c, _ := newTestClient(t, &fakeStore{})

	err := c.auth.authenticate(context.Background(), "", nil)
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("err = %v, want ErrNoCredentials", err)
	}
}

func TestAuthContextCanceled(t *testing.T) {
	st := preloadedStore(func(d *session.Data) { d.Token = "TOK" })
	c, sock := newTestClient(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.auth.authenticate(ctx, "", nil) }()

	sock.waitSent(t, 1)
	cancel()

	if err := waitAuth(t, errCh); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
