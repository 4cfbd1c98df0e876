package tele

import (
	"fmt"
	"time"
)

type VMID int32

type State uint8

const (
	StateInvalid State = iota
	StateBoot
	StateNominal
	StateClient
	StateProblem
	StateDisconnected
)

var stateNames = [...]string{
	StateInvalid:      "invalid",
	StateBoot:         "boot",
	StateNominal:      "nominal",
	StateClient:       "client",
	StateProblem:      "problem",
	StateDisconnected: "disconnected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Transaction is one completed vend.
// Amounts are in pence.
type Transaction struct {
	Id      string   `json:"id,omitempty"`
	Product string   `json:"product"`
	Price   int64    `json:"price"`
	Credit  int64    `json:"credit"`
	Change  []string `json:"change,omitempty"`
}

// Failure is a transaction ended by error, refund included.
type Failure struct {
	Id       string   `json:"id,omitempty"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Product  string   `json:"product,omitempty"`
	Returned []string `json:"returned,omitempty"`
}

// Telemetry is the wire envelope, exactly one of optional fields set.
type Telemetry struct {
	VmId         VMID         `json:"vm_id"`
	Time         int64        `json:"time"`
	Error        *Error       `json:"error,omitempty"`
	Transaction  *Transaction `json:"transaction,omitempty"`
	Failure      *Failure     `json:"failure,omitempty"`
	Stat         *StatData    `json:"stat,omitempty"`
	BuildVersion string       `json:"build_version,omitempty"`
}

type Error struct {
	Message string `json:"message"`
	Count   uint32 `json:"count,omitempty"`
}

func NowUnixNano() int64 { return time.Now().UnixNano() }
