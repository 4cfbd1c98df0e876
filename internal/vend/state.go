package vend

import "fmt"

type State uint32

const (
	StateInvalid State = iota

	StateIdle            // +select=ProductSelected
	StateProductSelected // +select=ProductSelected +coin<price=ProductSelected +coin>=price=Completed +error=Cancelled +return=Cancelled
	StateCompleted       // ->Idle
	StateCancelled       // ->Idle
)

var stateNames = [...]string{
	StateInvalid:         "Invalid",
	StateIdle:            "Idle",
	StateProductSelected: "ProductSelected",
	StateCompleted:       "Completed",
	StateCancelled:       "Cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// Terminal states are passed through, never observed by State().
func (s State) Terminal() bool { return s == StateCompleted || s == StateCancelled }
