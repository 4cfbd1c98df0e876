package tele

import (
	"context"

	"github.com/temoto/vendsim/log2"
	tele_config "github.com/temoto/vendsim/tele/config"
)

// Tele transport contract:
// - Init fails only with invalid config, ignores network errors
// - Send* return false when message should be retried later
// - application may start without network available
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config, willPayload []byte) error
	Close()
	SendState(payload []byte) bool
	SendTelemetry(payload []byte) bool
}
