package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInMemoryRecorder(t *testing.T) {
	m := NewInMemory()

	m.IncProvision(OutcomeSuccess)
	m.IncProvision(OutcomeRolledBack)
	m.IncProvision(OutcomeFailed)
	m.IncRollbackFailure()
	m.ObserveProvisionDuration(2 * time.Second)
	m.IncDeprovision()
	m.IncLogin(OutcomeSuccess)
	m.IncLogin(OutcomeFailed)
	m.IncMessageSent(OutcomeDelivered)
	m.IncContactSubmitted(OutcomeFailed)

	snap := m.Snapshot()
	if snap.ProvisionSuccess != 1 || snap.ProvisionRolledBack != 1 || snap.ProvisionFailed != 1 {
		t.Errorf("unexpected provision counters: %+v", snap)
	}
	if snap.RollbackFailures != 1 || snap.Deprovisions != 1 {
		t.Errorf("unexpected rollback/deprovision counters: %+v", snap)
	}
	if snap.ProvisionCount != 1 || snap.ProvisionTotalNs != int64(2*time.Second) {
		t.Errorf("unexpected duration counters: %+v", snap)
	}
	if snap.LoginSuccess != 1 || snap.LoginFailed != 1 {
		t.Errorf("unexpected login counters: %+v", snap)
	}
	if snap.MessagesDelivered != 1 || snap.ContactsFailed != 1 {
		t.Errorf("unexpected relay counters: %+v", snap)
	}
}

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheus()

	r.IncProvision(OutcomeSuccess)
	r.IncProvision(OutcomeSuccess)
	r.IncProvision(OutcomeRolledBack)
	r.IncMessageSent(OutcomeFailed)

	if got := testutil.ToFloat64(r.provisions.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("provisions{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.provisions.WithLabelValues(OutcomeRolledBack)); got != 1 {
		t.Errorf("provisions{rolled_back} = %v, want 1", got)
	}

	n, err := testutil.GatherAndCount(r.Gatherer(), "portal_provisions_total", "portal_messages_sent_total", "go_goroutines")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// provisions{success}, provisions{rolled_back}, messages{failed}, go_goroutines
	if n != 4 {
		t.Errorf("gathered %d series, want 4", n)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoop()
	r.IncProvision(OutcomeSuccess)
	r.IncLogin(OutcomeFailed)
}
