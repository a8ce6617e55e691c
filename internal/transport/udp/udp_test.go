// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
)

type staticSpectrum struct {
	mags []float64
}

func (s *staticSpectrum) MagnitudesInto(dst []float64) error {
	copy(dst, s.mags)
	return nil
}

func (s *staticSpectrum) FrequencyForBin(bin int) float64 { return float64(bin) }
func (s *staticSpectrum) BinCount() int                   { return len(s.mags) }

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPacketRoundTrip(t *testing.T) {
	session := uuid.New()
	mags := []float64{0, 0.25, 1.5, 3}

	b, err := AppendPacket(nil, session, 7, 123456789, mags)
	if err != nil {
		t.Fatalf("AppendPacket: %v", err)
	}
	if len(b) != headerSize+4*len(mags) {
		t.Fatalf("packet length = %d, want %d", len(b), headerSize+4*len(mags))
	}

	p, err := DecodePacket(b)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if p.Session != session || p.Seq != 7 || p.Timestamp != 123456789 {
		t.Errorf("header = %+v", p)
	}
	for i, m := range mags {
		if p.Magnitudes[i] != float32(m) {
			t.Errorf("magnitude %d = %g, want %g", i, p.Magnitudes[i], m)
		}
	}
}

func TestAppendPacketRefusesOversizedSpectrum(t *testing.T) {
	tests := []struct {
		name string
		bins int
		ok   bool
	}{
		{"largest datagram", MaxBins, true},
		{"one bin over", MaxBins + 1, false},
		{"count overflows uint16", math.MaxUint16 + 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := []byte{0xAA}
			b, err := AppendPacket(dst, uuid.New(), 1, 0, make([]float64, tt.bins))
			if !tt.ok {
				if !errors.Is(err, ErrTooManyBins) {
					t.Fatalf("AppendPacket(%d bins) error = %v, want ErrTooManyBins", tt.bins, err)
				}
				if len(b) != len(dst) {
					t.Errorf("refused packet grew dst to %d bytes", len(b))
				}
				return
			}
			if err != nil {
				t.Fatalf("AppendPacket(%d bins): %v", tt.bins, err)
			}
			if len(b)-len(dst) > maxPayload {
				t.Errorf("packet of %d bytes exceeds the UDP payload limit", len(b)-len(dst))
			}
			p, err := DecodePacket(b[len(dst):])
			if err != nil {
				t.Fatal(err)
			}
			if len(p.Magnitudes) != tt.bins {
				t.Errorf("decoded %d magnitudes, want %d", len(p.Magnitudes), tt.bins)
			}
		})
	}
}

func TestDecodePacketShort(t *testing.T) {
	b, err := AppendPacket(nil, uuid.New(), 1, 0, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only partly", b[:headerSize-1]},
		{"truncated body", b[:len(b)-2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.data); !errors.Is(err, ErrShortPacket) {
				t.Errorf("DecodePacket() error = %v, want ErrShortPacket", err)
			}
		})
	}
}

func TestSenderClose(t *testing.T) {
	conn := listen(t)
	s, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Send([]byte("late")); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("expected error for unresolvable address")
	}
}

func TestPublisherSendsSpectrum(t *testing.T) {
	conn := listen(t)
	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	src := &staticSpectrum{mags: []float64{0.5, 1, math.Pi}}
	p, err := NewPublisher(5*time.Millisecond, sender, src)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	defer p.Close()

	buf := make([]byte, 1500)
	var last uint32
	for range 2 {
		if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
			t.Fatal(err)
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("ReadFromUDP: %v", err)
		}
		pkt, err := DecodePacket(buf[:n])
		if err != nil {
			t.Fatalf("DecodePacket: %v", err)
		}
		if pkt.Session != p.Session() {
			t.Errorf("session = %s, want %s", pkt.Session, p.Session())
		}
		if pkt.Seq <= last {
			t.Errorf("sequence went from %d to %d", last, pkt.Seq)
		}
		last = pkt.Seq
		if len(pkt.Magnitudes) != 3 || pkt.Magnitudes[2] != float32(math.Pi) {
			t.Errorf("magnitudes = %v", pkt.Magnitudes)
		}
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNewPublisherValidation(t *testing.T) {
	conn := listen(t)
	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()

	if _, err := NewPublisher(time.Second, nil, &staticSpectrum{}); err == nil {
		t.Error("expected error for nil sender")
	}
	if _, err := NewPublisher(time.Second, sender, nil); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := NewPublisher(time.Second, sender, &staticSpectrum{mags: make([]float64, MaxBins+1)}); !errors.Is(err, ErrTooManyBins) {
		t.Errorf("oversized spectrum: error = %v, want ErrTooManyBins", err)
	}
	if _, err := NewPublisher(time.Second, sender, &staticSpectrum{mags: make([]float64, MaxBins)}); err != nil {
		t.Errorf("spectrum of MaxBins rejected: %v", err)
	}

	p, err := NewPublisher(-1, sender, &staticSpectrum{mags: make([]float64, 4)})
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %s, want %s", p.interval, DefaultInterval)
	}
}
