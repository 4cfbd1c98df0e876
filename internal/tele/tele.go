package tele

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/vendsim/helpers"
	"github.com/temoto/vendsim/log2"
	tele_api "github.com/temoto/vendsim/tele"
	tele_config "github.com/temoto/vendsim/tele/config"
)

const (
	defaultQueueSize  = 64
	defaultRetryDelay = 5 * time.Second
	defaultRetryMax   = 2 * time.Minute
)

const logMsgDisabled = "tele disabled"

// denote message kind in queue
const (
	qState     byte = 1
	qTelemetry byte = 2
)

type qmsg struct {
	kind    byte
	payload []byte
}

// Tele contract:
//   - Init() fails only with invalid config, network issues ignored
//   - Transaction/Error/etc public API calls never block on network,
//     messages are delivered in background
//   - Close() blocks until queued messages are delivered or dropped
//   - queue overflow drops new messages with error log
type tele struct { //nolint:maligned
	config    tele_config.Config
	log       *log2.Log
	transport Transporter
	alive     *alive.Alive
	qmu       sync.Mutex
	q         chan qmsg
	vmId      tele_api.VMID
	stat      tele_api.Stat

	retryDelay time.Duration
	backoff    helpers.Backoff
}

func New() tele_api.Teler {
	return &tele{}
}
func NewWithTransporter(trans Transporter) tele_api.Teler {
	return &tele{transport: trans}
}

func (self *tele) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	self.config = teleConfig
	self.log = log
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	self.vmId = tele_api.VMID(self.config.VmId)
	self.stat.Lock()
	self.stat.Locked_Reset()
	self.stat.Unlock()
	if !self.config.Enabled {
		return nil
	}

	if self.retryDelay == 0 {
		self.retryDelay = defaultRetryDelay
	}
	self.backoff = helpers.Backoff{
		Min: self.retryDelay,
		Max: helpers.IntSecondDefault(self.config.RetryMaxSec, defaultRetryMax),
		K:   2,
	}
	queueSize := self.config.QueueSize
	if queueSize == 0 {
		queueSize = defaultQueueSize
	} else if queueSize < 0 {
		return errors.NotValidf("tele.queue_size=%d", queueSize)
	}

	willPayload := []byte(tele_api.StateDisconnected.String())
	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, log, teleConfig, willPayload); err != nil {
		return errors.Annotate(err, "tele transport")
	}

	self.q = make(chan qmsg, queueSize)
	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.qworker()
	self.State(tele_api.StateBoot)
	return nil
}

func (self *tele) Close() {
	self.qmu.Lock()
	if self.alive == nil || !self.alive.IsRunning() {
		self.qmu.Unlock()
		return
	}
	self.alive.Stop()
	close(self.q)
	self.qmu.Unlock()
	self.alive.Wait()
	self.transport.Close()
}

func (self *tele) State(s tele_api.State) {
	if !self.config.Enabled {
		return
	}
	self.qpush(qState, []byte(s.String()))
}

func (self *tele) Error(e error) {
	if !self.config.Enabled {
		self.log.Debugf(logMsgDisabled)
		return
	}
	self.log.Debugf("tele.Error: %s", errors.ErrorStack(e))
	self.qpushTelemetry(&tele_api.Telemetry{Error: &tele_api.Error{Message: e.Error()}})
}

func (self *tele) StatModify(fun func(s *tele_api.Stat)) {
	self.stat.Lock()
	fun(&self.stat)
	self.stat.Unlock()
}

func (self *tele) Transaction(t tele_api.Transaction) {
	if !self.config.Enabled {
		self.log.Debugf(logMsgDisabled)
		return
	}
	self.qpushTelemetry(&tele_api.Telemetry{Transaction: &t})
}

func (self *tele) Failure(f tele_api.Failure) {
	if !self.config.Enabled {
		self.log.Debugf(logMsgDisabled)
		return
	}
	self.qpushTelemetry(&tele_api.Telemetry{Failure: &f})
}

// qpushTelemetry attaches and resets accumulated stat.
func (self *tele) qpushTelemetry(tm *tele_api.Telemetry) {
	if tm.VmId == 0 {
		tm.VmId = self.vmId
	}
	if tm.Time == 0 {
		tm.Time = time.Now().UnixNano()
	}
	tm.BuildVersion = self.config.BuildVersion
	self.stat.Lock()
	stat := self.stat.Locked_Copy()
	self.stat.Locked_Reset()
	self.stat.Unlock()
	tm.Stat = &stat

	payload, err := json.Marshal(tm)
	if err != nil {
		self.log.Errorf("CRITICAL telemetry Marshal tm=%#v err=%v", tm, err)
		return
	}
	self.qpush(qTelemetry, payload)
}

func (self *tele) qpush(kind byte, payload []byte) {
	self.qmu.Lock()
	defer self.qmu.Unlock()
	if self.alive == nil || !self.alive.IsRunning() {
		self.log.Debugf("tele closed, drop kind=%d", kind)
		return
	}
	select {
	case self.q <- qmsg{kind: kind, payload: payload}:
	default:
		// log2.Error would forward back into tele
		self.log.Logf(log2.LError, "tele queue full, drop kind=%d payload=%s", kind, payload)
	}
}

func (self *tele) qworker() {
	defer self.alive.Done()
	for m := range self.q {
		self.qdeliver(m)
	}
}

// qdeliver retries with backoff until success, after Close() only one attempt is made.
func (self *tele) qdeliver(m qmsg) {
	for !self.qsend(m) {
		delay := self.backoff.Failure()
		self.log.Debugf("tele send kind=%d failed, retry in %v", m.kind, delay)
		select {
		case <-self.alive.StopChan():
			self.log.Logf(log2.LError, "tele stopping, drop kind=%d", m.kind)
			return
		case <-time.After(delay):
		}
	}
	self.backoff.Success()
}

func (self *tele) qsend(m qmsg) bool {
	switch m.kind {
	case qState:
		return self.transport.SendState(m.payload)
	case qTelemetry:
		return self.transport.SendTelemetry(m.payload)
	default:
		self.log.Logf(log2.LError, "code error tele unknown kind=%d", m.kind)
		return true
	}
}
