package tele

import (
	"context"
	"sync"

	"github.com/temoto/vendsim/log2"
	tele_config "github.com/temoto/vendsim/tele/config"
)

// Teler interface Telemetry client, vending machine side.
type Teler interface {
	Init(context.Context, *log2.Log, tele_config.Config) error
	Close()
	State(State)
	Error(error)
	StatModify(func(*Stat))
	Transaction(Transaction)
	Failure(Failure)
}

// Multi sends every event to each Teler in order.
type Multi []Teler

var _ Teler = Multi{} // compile-time interface test

func (self Multi) Init(ctx context.Context, log *log2.Log, config tele_config.Config) error {
	for _, t := range self {
		if err := t.Init(ctx, log, config); err != nil {
			return err
		}
	}
	return nil
}

func (self Multi) Close() {
	for _, t := range self {
		t.Close()
	}
}

func (self Multi) State(s State) {
	for _, t := range self {
		t.State(s)
	}
}

func (self Multi) Error(e error) {
	for _, t := range self {
		t.Error(e)
	}
}

func (self Multi) StatModify(fun func(*Stat)) {
	for _, t := range self {
		t.StatModify(fun)
	}
}

func (self Multi) Transaction(tx Transaction) {
	for _, t := range self {
		t.Transaction(tx)
	}
}

func (self Multi) Failure(f Failure) {
	for _, t := range self {
		t.Failure(f)
	}
}

// Recorder keeps everything in memory, for tests.
type Recorder struct {
	mu           sync.Mutex
	stat         Stat
	States       []State
	Errors       []error
	Transactions []Transaction
	Failures     []Failure
}

var _ Teler = &Recorder{} // compile-time interface test

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.stat.Locked_Reset()
	return r
}

func (self *Recorder) Init(context.Context, *log2.Log, tele_config.Config) error { return nil }
func (self *Recorder) Close()                                                    {}

func (self *Recorder) State(s State) {
	self.mu.Lock()
	self.States = append(self.States, s)
	self.mu.Unlock()
}

func (self *Recorder) Error(e error) {
	self.mu.Lock()
	self.Errors = append(self.Errors, e)
	self.mu.Unlock()
}

func (self *Recorder) StatModify(fun func(*Stat)) {
	self.stat.Lock()
	fun(&self.stat)
	self.stat.Unlock()
}

func (self *Recorder) Transaction(t Transaction) {
	self.mu.Lock()
	self.Transactions = append(self.Transactions, t)
	self.mu.Unlock()
}

func (self *Recorder) Failure(f Failure) {
	self.mu.Lock()
	self.Failures = append(self.Failures, f)
	self.mu.Unlock()
}

func (self *Recorder) Stat() StatData {
	self.stat.Lock()
	defer self.stat.Unlock()
	return self.stat.Locked_Copy()
}
