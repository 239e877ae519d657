// Package metrics — счётчики Prometheus для клиента.
// Init вызывается один раз из команды запуска; пока он не вызван,
// все Record-функции молча ничего не делают, так что библиотека
// работает и без метрик.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maxbot"

type set struct {
	framesIn     prometheus.Counter
	framesOut    prometheus.Counter
	decodeErrors prometheus.Counter
	reconnects   prometheus.Counter
	authAttempts prometheus.Counter
	authFailures prometheus.Counter
	connected    prometheus.Gauge
}

var (
	global     *set
	globalOnce sync.Once
)

// Init регистрирует метрики в reg. Повторные вызовы игнорируются.
func Init(reg prometheus.Registerer) {
	globalOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		factory := promauto.With(reg)
		global = &set{
			framesIn: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_in_total",
				Help:      "Frames received from the server",
			}),
			framesOut: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_out_total",
				Help:      "Frames sent to the server",
			}),
			decodeErrors: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Inbound frames dropped as undecodable",
			}),
			reconnects: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_total",
				Help:      "Reconnect attempts after a dropped connection",
			}),
			authAttempts: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Authentication attempts, token and phone alike",
			}),
			authFailures: factory.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Authentication attempts that ended with an error",
			}),
			connected: factory.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected",
				Help:      "1 while the websocket is open",
			}),
		}
	})
}

func RecordFrameIn() {
	if global != nil {
		global.framesIn.Inc()
	}
}

func RecordFrameOut() {
	if global != nil {
		global.framesOut.Inc()
	}
}

func RecordDecodeError() {
	if global != nil {
		global.decodeErrors.Inc()
	}
}

func RecordReconnect() {
	if global != nil {
		global.reconnects.Inc()
	}
}

func RecordAuthAttempt() {
	if global != nil {
		global.authAttempts.Inc()
	}
}

func RecordAuthFailure() {
	if global != nil {
		global.authFailures.Inc()
	}
}

func SetConnected(up bool) {
	if global == nil {
		return
	}
	if up {
		global.connected.Set(1)
	} else {
		global.connected.Set(0)
	}
}
