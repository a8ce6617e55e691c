// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"fftpassthrough/internal/log"
	"fftpassthrough/internal/monitor"

	"github.com/google/uuid"
)

// DefaultInterval is used when a non-positive send interval is given.
const DefaultInterval = 16 * time.Millisecond

/*
Packet layout, big endian:

	| Session   | [16]byte  | 16    | UUID of the publisher           |
	| Sequence  | uint32    | 4     | Monotonically increasing        |
	| Timestamp | int64     | 8     | Nanoseconds since epoch         |
	| Count     | uint16    | 2     | Number of magnitudes (N)        |
	| Magnitude | []float32 | N * 4 | Bins 0..W/2 of the last spectrum |
*/
const headerSize = 16 + 4 + 8 + 2

// maxPayload is the largest UDP payload over IPv4.
const maxPayload = 65507

// MaxBins is the largest spectrum that fits in one datagram.
const MaxBins = (maxPayload - headerSize) / 4

var (
	// ErrShortPacket is returned by DecodePacket for truncated datagrams.
	ErrShortPacket = errors.New("udp: packet too short")
	// ErrTooManyBins is returned when a spectrum does not fit in one datagram.
	ErrTooManyBins = fmt.Errorf("udp: spectrum exceeds %d bins", MaxBins)
)

// Packet is a decoded spectrum datagram.
type Packet struct {
	Session    uuid.UUID
	Seq        uint32
	Timestamp  int64
	Magnitudes []float32
}

// Publisher periodically packs the latest magnitude spectrum into a datagram
// and sends it. It runs in its own goroutine between Start and Stop.
type Publisher struct {
	sender   *Sender
	source   monitor.SpectrumSource
	interval time.Duration
	session  uuid.UUID

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	seq uint32

	// Reused on every tick.
	magnitudes []float64
	packet     []byte
}

// NewPublisher creates a publisher for source over sender.
func NewPublisher(interval time.Duration, sender *Sender, source monitor.SpectrumSource) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp publisher: spectrum source cannot be nil")
	}
	bins := source.BinCount()
	if bins > MaxBins {
		return nil, fmt.Errorf("udp publisher: %w, got %d", ErrTooManyBins, bins)
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	session := uuid.New()
	log.Infof("UDPPublisher: Initializing (session %s, interval %s, bins %d)", session, interval, bins)

	return &Publisher{
		sender:     sender,
		source:     source,
		interval:   interval,
		session:    session,
		magnitudes: make([]float64, bins),
		packet:     make([]byte, 0, headerSize+4*bins),
	}, nil
}

// Session identifies this publisher's packets.
func (p *Publisher) Session() uuid.UUID { return p.session }

// Start launches the publishing goroutine. Calling it while running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		log.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit. Calling it while
// stopped is a no-op.
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
	log.Infof("UDPPublisher: Stopped after %d packets", p.seq)
	return nil
}

// Close stops the publisher. The sender stays open for its owner.
func (p *Publisher) Close() error {
	return p.Stop()
}

func (p *Publisher) buildAndSendPacket() {
	if err := p.source.MagnitudesInto(p.magnitudes); err != nil {
		log.Errorf("UDPPublisher: Error getting magnitudes: %v", err)
		return
	}

	p.seq++
	packet, err := AppendPacket(p.packet[:0], p.session, p.seq, time.Now().UnixNano(), p.magnitudes)
	if err != nil {
		log.Errorf("UDPPublisher: %v", err)
		return
	}
	p.packet = packet

	if err := p.sender.Send(p.packet); err != nil {
		return // Logged by the sender.
	}
	log.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.seq, len(p.packet))
}

// AppendPacket encodes one packet onto dst. Spectra larger than MaxBins are
// refused and dst is returned unchanged.
func AppendPacket(dst []byte, session uuid.UUID, seq uint32, timestamp int64, magnitudes []float64) ([]byte, error) {
	if len(magnitudes) > MaxBins {
		return dst, fmt.Errorf("%w, got %d", ErrTooManyBins, len(magnitudes))
	}
	dst = append(dst, session[:]...)
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(magnitudes)))
	for _, m := range magnitudes {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(m)))
	}
	return dst, nil
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}

	var p Packet
	copy(p.Session[:], b[:16])
	p.Seq = binary.BigEndian.Uint32(b[16:20])
	p.Timestamp = int64(binary.BigEndian.Uint64(b[20:28]))
	count := int(binary.BigEndian.Uint16(b[28:30]))

	body := b[headerSize:]
	if len(body) < 4*count {
		return Packet{}, fmt.Errorf("%w: %d magnitudes announced, %d bytes present", ErrShortPacket, count, len(body))
	}
	p.Magnitudes = make([]float32, count)
	for i := range p.Magnitudes {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(body[4*i:]))
	}
	return p, nil
}
