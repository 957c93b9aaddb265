package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	if got := testutil.ToFloat64(m.active); got != 2 {
		t.Errorf("Expected 2 active sessions, got %v", got)
	}

	m.SessionFinished(OutcomeMessage)
	m.SessionFinished(OutcomeNoMessage)
	if got := testutil.ToFloat64(m.active); got != 0 {
		t.Errorf("Expected 0 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues(OutcomeMessage)); got != 1 {
		t.Errorf("Expected 1 session with a message, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues(OutcomeError)); got != 0 {
		t.Errorf("Expected 0 failed sessions, got %v", got)
	}
}

func TestStoreCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.MessageStored()
	m.MessageStored()
	m.StoreFailed()

	if got := testutil.ToFloat64(m.stored); got != 2 {
		t.Errorf("Expected 2 stored messages, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeErrors); got != 1 {
		t.Errorf("Expected 1 store error, got %v", got)
	}
}

func TestRegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SessionStarted()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "smteepee_smtp_active_sessions" {
			found = true
		}
	}
	if !found {
		t.Error("Expected smteepee_smtp_active_sessions to be registered")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.SessionStarted()
	m.SessionFinished(OutcomeError)
	m.MessageStored()
	m.StoreFailed()
}
