package maxclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"example.com/maxbot/internal/metrics"
	"example.com/maxbot/pkg/maxproto"
)

// ========================= вход =========================

// CodeFunc запрашивает у пользователя код подтверждения из SMS.
// Может блокироваться сколько угодно: пока она думает, кадры из
// сокета не обрабатываются, ровно как в веб-клиенте.
type CodeFunc func() (string, error)

type authState int

const (
	authIdle authState = iota
	authAwaitToken
	authAwaitCode
	authReauth
	authReady
)

func (s authState) String() string {
	switch s {
	case authIdle:
		return "idle"
	case authAwaitToken:
		return "await_token"
	case authAwaitCode:
		return "await_code"
	case authReauth:
		return "reauth"
	case authReady:
		return "ready"
	}
	return "unknown"
}

// authWait — одно ожидание исхода входа. Разрешается ровно один раз;
// done можно ждать из нескольких мест одновременно.
type authWait struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newAuthWait() *authWait {
	return &authWait{done: make(chan struct{})}
}

func (w *authWait) resolve() {
	w.once.Do(func() {
		close(w.done)
	})
}

func (w *authWait) fail(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.done)
	})
}

func (w *authWait) resolved() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// authManager ведёт состояние входа. Протокол не даёт привязать ответ
// к конкретному запросу, поэтому машина чисто реактивная: события
// сопоставляются с единственной текущей попыткой только по типу.
type authManager struct {
	c   *MaxClient
	log zerolog.Logger

	mu     sync.Mutex
	state  authState
	wait   *authWait
	codeFn CodeFunc
	phone  string
}

func newAuthManager(c *MaxClient) *authManager {
	return &authManager{
		c:   c,
		log: c.log.With().Str("part", "auth").Logger(),
	}
}

func (a *authManager) bind(reg *eventRegistry) {
	reg.add(maxproto.EventAuthSuccess, a.onSuccess)
	reg.add(maxproto.EventAuthCodeRequested, a.onCodeRequested)
	reg.add(maxproto.EventAuthCodeChecked, a.onCodeChecked)
	reg.add(maxproto.EventAuthError, a.onError)
	reg.add(maxproto.EventAuthCodeError, a.onCodeError)
}

// authenticate выполняет вход: по сохранённому токену, если он есть,
// иначе по телефону с кодом из SMS. Блокируется до исхода.
func (a *authManager) authenticate(ctx context.Context, phone string, codeFn CodeFunc) error {
	a.mu.Lock()
	a.codeFn = codeFn
	if phone != "" {
		a.phone = phone
	}
	a.mu.Unlock()

	if token := a.c.sess.Token(); token != "" {
		a.log.Info().Msg("found saved token, authorizing")
		return a.loginWithToken(ctx, token)
	}
	if phone == "" {
		phone = a.c.sess.Phone()
	}
	if phone == "" {
		return ErrNoCredentials
	}
	return a.loginWithPhone(ctx, phone)
}

func (a *authManager) loginWithToken(ctx context.Context, token string) error {
	metrics.RecordAuthAttempt()
	w := a.armWait(authAwaitToken)

	// сервер отвергает вход сразу после рукопожатия, нужна пауза
	if err := sleepCtx(ctx, authDelay); err != nil {
		return err
	}
	if err := a.c.SendAuthToken(token); err != nil {
		return err
	}
	return a.awaitOutcome(ctx, w, authTimeout)
}

func (a *authManager) loginWithPhone(ctx context.Context, phone string) error {
	metrics.RecordAuthAttempt()
	w := a.armWait(authAwaitCode)

	// телефон сохраняется до отправки: упади процесс между ними,
	// при следующем запуске номер уже будет в сессии
	a.c.sess.SetPhone(phone)
	_ = a.c.sess.Save()

	a.log.Info().Str("phone", phone).Msg("starting sms login")
	if err := a.c.SendAuthStart(phone); err != nil {
		return err
	}
	if err := a.sendNavigation(); err != nil {
		return err
	}
	return a.awaitOutcome(ctx, w, 0)
}

// sendNavigation повторяет телеметрию переходов веб-клиента по
// страницам входа: без неё сервер не присылает код.
func (a *authManager) sendNavigation() error {
	now := time.Now().UnixMilli()
	if err := a.c.SendEvents(TelemetryEvent{Type: "COLD_START", Time: now}); err != nil {
		return err
	}
	return a.c.SendEvents(TelemetryEvent{Type: "GO", Page: 1, Time: now})
}

// armWait возвращает текущее незавершённое ожидание либо заводит
// новое. Повторный вход (после отклонённого токена) присоединяется к
// уже идущей попытке, и auth_success разбудит первого вызывающего.
func (a *authManager) armWait(st authState) *authWait {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = st
	if a.wait != nil && !a.wait.resolved() {
		return a.wait
	}
	a.wait = newAuthWait()
	return a.wait
}

// pending — текущее неразрешённое ожидание, если оно есть.
func (a *authManager) pending() *authWait {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wait != nil && !a.wait.resolved() {
		return a.wait
	}
	return nil
}

func (a *authManager) failPending(err error) {
	if w := a.pending(); w != nil {
		w.fail(err)
	}
}

func (a *authManager) setState(st authState) {
	a.mu.Lock()
	old := a.state
	a.state = st
	a.mu.Unlock()
	if old != st {
		a.log.Debug().Str("from", old.String()).Str("to", st.String()).Msg("auth state")
	}
}

// awaitOutcome ждёт исхода попытки. timeout == 0 — ждать, пока жив ctx.
func (a *authManager) awaitOutcome(ctx context.Context, w *authWait, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-w.done:
		if w.err != nil {
			return w.err
		}
		return nil
	case <-expired:
		metrics.RecordAuthFailure()
		w.fail(ErrAuthTimeout)
		return ErrAuthTimeout
	case <-ctx.Done():
		w.fail(ctx.Err())
		return ctx.Err()
	}
}

// ========================= обработчики событий =========================

func (a *authManager) onSuccess(payload json.RawMessage) error {
	// токен уходит на диск раньше, чем проснётся ожидающий:
	// "вход выполнен" не должно опережать сохранённый токен
	if token := gjson.GetBytes(payload, "token").Str; token != "" {
		a.c.sess.SetToken(token)
		_ = a.c.sess.Save()
	}
	a.setState(authReady)
	if w := a.pending(); w != nil {
		w.resolve()
	}
	return nil
}

func (a *authManager) onCodeRequested(payload json.RawMessage) error {
	a.mu.Lock()
	codeFn := a.codeFn
	a.mu.Unlock()

	a.log.Info().Msg("sms code requested")
	if codeFn == nil {
		a.log.Warn().Msg("no code callback, waiting for out-of-band auth")
		return nil
	}

	code, err := codeFn()
	if err != nil {
		return err
	}
	if code == "" {
		// кода нет — попытка остаётся висеть, это не ошибка
		a.log.Warn().Msg("empty sms code, still waiting")
		return nil
	}
	token := gjson.GetBytes(payload, "token").Str
	return a.c.SendAuthCode(token, code)
}

func (a *authManager) onCodeChecked(payload json.RawMessage) error {
	token := gjson.GetBytes(payload, "tokenAttrs.LOGIN.token").Str
	if token == "" {
		// сервер иногда подтверждает код без токена; ждём дальше
		a.log.Debug().Msg("code checked without login token")
		return nil
	}
	a.log.Info().Msg("code verified, completing login with received token")
	a.c.sess.SetToken(token)
	_ = a.c.sess.Save()
	a.setState(authAwaitToken)
	return a.c.SendAuthToken(token)
}

func (a *authManager) onError(payload json.RawMessage) error {
	code := gjson.GetBytes(payload, "error").Str
	message := gjson.GetBytes(payload, "message").Str
	a.log.Error().Str("error", code).Str("message", message).Msg("auth error")

	if code != "login.token" && message != "FAIL_LOGIN_TOKEN" {
		metrics.RecordAuthFailure()
		a.setState(authIdle)
		if w := a.pending(); w != nil {
			w.fail(&AuthError{Code: code, Message: message})
		}
		return nil
	}

	// сохранённый токен отвергнут: чистим его и, если знаем номер,
	// сами перезапускаем вход по телефону
	a.log.Warn().Msg("stored token rejected, re-authorization required")
	a.c.sess.SetToken("")
	_ = a.c.sess.Save()

	a.mu.Lock()
	phone := a.phone
	a.mu.Unlock()
	if phone == "" {
		phone = a.c.sess.Phone()
	}
	if phone == "" {
		metrics.RecordAuthFailure()
		a.setState(authIdle)
		if w := a.pending(); w != nil {
			w.fail(&AuthError{Code: code, Message: "phone number not known, manual login required"})
		}
		return nil
	}

	metrics.RecordAuthAttempt()
	w := a.armWait(authReauth)
	if err := a.c.SendAuthStart(phone); err != nil {
		w.fail(err)
		return err
	}
	if err := a.sendNavigation(); err != nil {
		w.fail(err)
		return err
	}
	// исход дожидается отдельная горутина: блокироваться здесь нельзя,
	// иначе цикл чтения никогда не увидит auth_success
	go a.watchReauth(w)
	return nil
}

func (a *authManager) watchReauth(w *authWait) {
	timer := time.NewTimer(authTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		if w.err != nil {
			a.log.Error().Err(w.err).Msg("re-authorization failed")
		} else {
			a.log.Info().Msg("re-authorization successful")
		}
	case <-timer.C:
		metrics.RecordAuthFailure()
		w.fail(ErrAuthTimeout)
		a.log.Error().Msg("re-authorization timed out")
	}
}

func (a *authManager) onCodeError(payload json.RawMessage) error {
	code := gjson.GetBytes(payload, "error").Str
	message := gjson.GetBytes(payload, "localizedMessage").Str
	if message == "" {
		message = gjson.GetBytes(payload, "message").Str
	}
	a.log.Error().Str("error", code).Str("message", message).Msg("auth code error")
	if code == errLimitViolate {
		a.log.Warn().Msg("too many attempts, try again later")
	}

	metrics.RecordAuthFailure()
	a.setState(authIdle)
	if w := a.pending(); w != nil {
		w.fail(&AuthError{Code: code, Message: message})
	}
	return nil
}
