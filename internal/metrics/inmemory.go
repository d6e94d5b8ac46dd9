package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ProvisionSuccess    uint64
	ProvisionFailed     uint64
	ProvisionRolledBack uint64
	RollbackFailures    uint64
	ProvisionCount      uint64
	ProvisionTotalNs    int64
	Deprovisions        uint64
	LoginSuccess        uint64
	LoginFailed         uint64
	MessagesDelivered   uint64
	MessagesFailed      uint64
	ContactsDelivered   uint64
	ContactsFailed      uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	provisionSuccess    atomic.Uint64
	provisionFailed     atomic.Uint64
	provisionRolledBack atomic.Uint64
	rollbackFailures    atomic.Uint64
	provisionCount      atomic.Uint64
	provisionTotalNs    atomic.Int64
	deprovisions        atomic.Uint64
	loginSuccess        atomic.Uint64
	loginFailed         atomic.Uint64
	messagesDelivered   atomic.Uint64
	messagesFailed      atomic.Uint64
	contactsDelivered   atomic.Uint64
	contactsFailed      atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		ProvisionSuccess:    m.provisionSuccess.Load(),
		ProvisionFailed:     m.provisionFailed.Load(),
		ProvisionRolledBack: m.provisionRolledBack.Load(),
		RollbackFailures:    m.rollbackFailures.Load(),
		ProvisionCount:      m.provisionCount.Load(),
		ProvisionTotalNs:    m.provisionTotalNs.Load(),
		Deprovisions:        m.deprovisions.Load(),
		LoginSuccess:        m.loginSuccess.Load(),
		LoginFailed:         m.loginFailed.Load(),
		MessagesDelivered:   m.messagesDelivered.Load(),
		MessagesFailed:      m.messagesFailed.Load(),
		ContactsDelivered:   m.contactsDelivered.Load(),
		ContactsFailed:      m.contactsFailed.Load(),
	}
}

// IncProvision counts a finished provisioning run by outcome.
func (m *InMemoryRecorder) IncProvision(outcome string) {
	switch outcome {
	case OutcomeSuccess:
		m.provisionSuccess.Add(1)
	case OutcomeRolledBack:
		m.provisionRolledBack.Add(1)
	default:
		m.provisionFailed.Add(1)
	}
}

// IncRollbackFailure counts a compensation that could not delete the identity.
func (m *InMemoryRecorder) IncRollbackFailure() {
	m.rollbackFailures.Add(1)
}

// ObserveProvisionDuration records workflow duration.
func (m *InMemoryRecorder) ObserveProvisionDuration(duration time.Duration) {
	m.provisionCount.Add(1)
	m.provisionTotalNs.Add(duration.Nanoseconds())
}

// IncDeprovision counts a deleted user.
func (m *InMemoryRecorder) IncDeprovision() {
	m.deprovisions.Add(1)
}

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	if outcome == OutcomeSuccess {
		m.loginSuccess.Add(1)
		return
	}
	m.loginFailed.Add(1)
}

// IncMessageSent counts a relayed client message by outcome.
func (m *InMemoryRecorder) IncMessageSent(outcome string) {
	if outcome == OutcomeDelivered {
		m.messagesDelivered.Add(1)
		return
	}
	m.messagesFailed.Add(1)
}

// IncContactSubmitted counts a contact form relay by outcome.
func (m *InMemoryRecorder) IncContactSubmitted(outcome string) {
	if outcome == OutcomeDelivered {
		m.contactsDelivered.Add(1)
		return
	}
	m.contactsFailed.Add(1)
}
