// Package sink holds the event consumers attached to the fanout worker.
package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"

	"chat-relay/domain/event"
)

// Telemetry logs one line per accepted message: fan-out width, accept
// latency, and the detected language of the body. Purely observational.
type Telemetry struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewTelemetry(log *slog.Logger, latencyThreshold time.Duration) *Telemetry {
	return &Telemetry{log: log, latencyThreshold: latencyThreshold}
}

func (t *Telemetry) Consume(_ context.Context, e event.Event) error {
	switch payload := e.Payload.(type) {
	case event.MessagePosted:
		info := whatlanggo.Detect(payload.Body)
		leadTime := time.Since(payload.At)

		t.log.Info("telemetry: message accepted",
			"sender", payload.Sender,
			"public", payload.Receiver == "",
			"recipients", payload.Recipients,
			"lang", info.Lang.Iso6391(),
			"lead_time_ms", leadTime.Milliseconds(),
		)
		if leadTime > t.latencyThreshold {
			t.log.Warn("high accept latency detected", "lead_time", leadTime)
		}
	case event.SessionClosed:
		t.log.Info("telemetry: session closed",
			"session_id", payload.SessionID,
			"identity", payload.Identity,
			"dropped", payload.Dropped,
		)
	}
	return nil
}
