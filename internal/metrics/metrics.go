// Package metrics exposes prometheus counters for proof sessions. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "itpsession"

type Metrics struct {
	NotificationsTotal *prometheus.CounterVec
	DecodeErrorsTotal  *prometheus.CounterVec
	FrameErrorsTotal   prometheus.Counter
	TreeErrorsTotal    *prometheus.CounterVec
	RequestsTotal      *prometheus.CounterVec
	FramesSentTotal    prometheus.Counter
	BytesSentTotal     prometheus.Counter
	SendErrorsTotal    prometheus.Counter
	OversizedTotal     prometheus.Counter
	SessionsTotal      *prometheus.CounterVec
	TreeNodes          prometheus.Gauge
	FeedClients        prometheus.Gauge
}

// New registers every collector on reg. Passing a fresh registry per session
// keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications received from the proof server by kind",
		}, []string{"kind"}),
		DecodeErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Notifications dropped because they failed to decode",
		}, []string{"kind"}),
		FrameErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Framed units dropped because they held no JSON object",
		}),
		TreeErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_errors_total",
			Help:      "Notifications skipped because they referenced unknown or duplicate nodes",
		}, []string{"op"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests queued for the proof server by name",
		}, []string{"request"}),
		FramesSentTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Batched frames written to the proof server",
		}),
		BytesSentTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the proof server",
		}),
		SendErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Frames that could not be written to the proof server",
		}),
		OversizedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversized_requests_total",
			Help:      "Queues dropped because a request did not fit in one frame",
		}),
		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished sessions by outcome",
		}, []string{"outcome"}),
		TreeNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_nodes",
			Help:      "Nodes currently held in the proof tree",
		}),
		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected tree feed websocket clients",
		}),
	}
}

func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) DecodeError(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameError() {
	if m == nil {
		return
	}
	m.FrameErrorsTotal.Inc()
}

func (m *Metrics) TreeError(op string) {
	if m == nil {
		return
	}
	m.TreeErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Request(name string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) FrameSent(n int) {
	if m == nil {
		return
	}
	m.FramesSentTotal.Inc()
	m.BytesSentTotal.Add(float64(n))
}

func (m *Metrics) SendError() {
	if m == nil {
		return
	}
	m.SendErrorsTotal.Inc()
}

func (m *Metrics) Oversized() {
	if m == nil {
		return
	}
	m.OversizedTotal.Inc()
}

func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetTreeNodes(n int) {
	if m == nil {
		return
	}
	m.TreeNodes.Set(float64(n))
}

func (m *Metrics) FeedClientsDelta(d int) {
	if m == nil {
		return
	}
	m.FeedClients.Add(float64(d))
}
