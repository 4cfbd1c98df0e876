package tele

import (
	"sync"
)

// StatData counters are low priority telemetry.
// Sent together with more important data.
type StatData struct {
	Vends         uint32            `json:"vends"`
	Failures      uint32            `json:"failures"`
	CoinsAccepted map[string]uint32 `json:"coins_accepted,omitempty"`
	CoinsRejected uint32            `json:"coins_rejected,omitempty"`
}

type Stat struct { //nolint:maligned
	sync.Mutex
	StatData
}

// Internal for tele package. Caller must hold self.Mutex.
func (self *Stat) Locked_Reset() {
	self.StatData = StatData{CoinsAccepted: make(map[string]uint32, 8)}
}

// Caller must hold self.Mutex.
func (self *Stat) Locked_Copy() StatData {
	c := self.StatData
	c.CoinsAccepted = make(map[string]uint32, len(self.CoinsAccepted))
	for k, v := range self.CoinsAccepted {
		c.CoinsAccepted[k] = v
	}
	return c
}
