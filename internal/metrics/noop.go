package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncProvision(string)                    {}
func (n *NoopRecorder) IncRollbackFailure()                    {}
func (n *NoopRecorder) ObserveProvisionDuration(time.Duration) {}
func (n *NoopRecorder) IncDeprovision()                        {}
func (n *NoopRecorder) IncLogin(string)                        {}
func (n *NoopRecorder) IncMessageSent(string)                  {}
func (n *NoopRecorder) IncContactSubmitted(string)             {}
