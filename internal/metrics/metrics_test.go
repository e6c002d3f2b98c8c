package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Notification("New_node")
	m.Notification("New_node")
	m.Notification("Task")
	m.FrameSent(70)
	m.FrameSent(30)

	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("New_node")); got != 2 {
		t.Fatalf("expected 2 New_node notifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("Task")); got != 1 {
		t.Fatalf("expected 1 Task notification, got %v", got)
	}
	if got := testutil.ToFloat64(m.BytesSentTotal); got != 100 {
		t.Fatalf("expected 100 bytes sent, got %v", got)
	}
	if got := testutil.ToFloat64(m.FramesSentTotal); got != 2 {
		t.Fatalf("expected 2 frames, got %v", got)
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())
	a.Oversized()
	if got := testutil.ToFloat64(b.OversizedTotal); got != 0 {
		t.Fatalf("registries leaked into each other: %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Notification("x")
	m.DecodeError("x")
	m.FrameError()
	m.TreeError("x")
	m.Request("x")
	m.FrameSent(1)
	m.SendError()
	m.Oversized()
	m.SessionFinished("x")
	m.SetTreeNodes(1)
	m.FeedClientsDelta(1)
}
