package transform

import (
	"github.com/yanun0323/logs"

	"github.com/CallistoLabsNYC/rp-transform-study/internal/obs"
)

const maxLoggedPayload = 256

// Diagnostics receives messages the transform drops.
type Diagnostics interface {
	Dropped(reason obs.DropReason, payload []byte, err error)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(reason obs.DropReason, payload []byte, err error)

func (f DiagnosticsFunc) Dropped(reason obs.DropReason, payload []byte, err error) {
	f(reason, payload, err)
}

// LogDiagnostics writes drops to the process logger.
type LogDiagnostics struct{}

func (LogDiagnostics) Dropped(reason obs.DropReason, payload []byte, err error) {
	if len(payload) > maxLoggedPayload {
		payload = payload[:maxLoggedPayload]
	}
	logs.Infof("transform: dropped message (%s): %v, payload: %s", reason, err, payload)
}

type discardDiagnostics struct{}

func (discardDiagnostics) Dropped(obs.DropReason, []byte, error) {}

// Discard ignores every drop.
var Discard Diagnostics = discardDiagnostics{}
