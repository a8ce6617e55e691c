// SPDX-License-Identifier: MIT
package monitor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fftpassthrough/internal/log"
	"fftpassthrough/internal/transport"

	"github.com/google/uuid"
)

// DefaultInterval is used when a non-positive publish interval is given.
const DefaultInterval = 33 * time.Millisecond

// FrameType tags band energy messages.
const FrameType = "band_energy"

// CycleCounter reports how many STFT cycles have run.
type CycleCounter interface {
	Cycles() uint64
}

// Frame is one published band energy message.
type Frame struct {
	Type      string      `json:"type"`
	Session   string      `json:"session"`
	Seq       uint64      `json:"seq"`
	Timestamp int64       `json:"ts"`
	Cycles    uint64      `json:"cycles"`
	Bands     []BandLevel `json:"bands"`
}

// Publisher periodically reduces the latest spectrum to band levels and sends
// them through a transport. It runs in its own goroutine between Start and
// Stop and never touches the audio thread.
type Publisher struct {
	meter     *BandMeter
	transport transport.Transport
	cycles    CycleCounter
	interval  time.Duration
	session   string

	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup

	seq    uint64
	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewPublisher creates a publisher. cycles may be nil.
func NewPublisher(interval time.Duration, meter *BandMeter, tr transport.Transport, cycles CycleCounter) (*Publisher, error) {
	if meter == nil {
		return nil, errors.New("monitor: publisher requires a band meter")
	}
	if tr == nil {
		return nil, errors.New("monitor: publisher requires a transport")
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		meter:     meter,
		transport: tr,
		cycles:    cycles,
		interval:  interval,
		session:   uuid.NewString(),
	}, nil
}

// Session identifies this publisher's stream of frames.
func (p *Publisher) Session() string { return p.session }

// Sent counts frames the transport accepted.
func (p *Publisher) Sent() uint64 { return p.sent.Load() }

// Failed counts frames that could not be built or sent.
func (p *Publisher) Failed() uint64 { return p.failed.Load() }

// Start launches the publishing goroutine. Calling it while running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		log.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Infof("Publisher: Started (session %s, interval %s)", p.session, p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Calling it while stopped is a
// no-op.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.ticker.Stop()
	close(p.doneChan)
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	log.Infof("Publisher: Stopped after %d frames (%d failed)", p.sent.Load(), p.failed.Load())
	return nil
}

// Close stops the publisher. The transport is left open for its owner.
func (p *Publisher) Close() error {
	return p.Stop()
}

// publish builds one frame and sends it.
func (p *Publisher) publish() {
	levels, err := p.meter.Update()
	if err != nil {
		p.failed.Add(1)
		log.Errorf("Publisher: Error reading spectrum: %v", err)
		return
	}

	p.seq++
	frame := Frame{
		Type:      FrameType,
		Session:   p.session,
		Seq:       p.seq,
		Timestamp: time.Now().UnixNano(),
		Bands:     append([]BandLevel(nil), levels...), // The meter reuses levels.
	}
	if p.cycles != nil {
		frame.Cycles = p.cycles.Cycles()
	}

	if err := p.transport.Send(frame); err != nil {
		p.failed.Add(1)
		log.Debugf("Publisher: Error sending frame %d: %v", frame.Seq, err)
		return
	}
	p.sent.Add(1)
}

var _ interface{ Close() error } = (*Publisher)(nil)
