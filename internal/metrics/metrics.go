// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeRolledBack = "rolled_back"
	OutcomeDelivered  = "delivered"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Provisioning workflow
	IncProvision(outcome string) // success, failed, rolled_back
	IncRollbackFailure()
	ObserveProvisionDuration(duration time.Duration)
	IncDeprovision()

	// Sessions
	IncLogin(outcome string) // success, failed

	// Message relay
	IncMessageSent(outcome string) // delivered, failed
	IncContactSubmitted(outcome string)
}
