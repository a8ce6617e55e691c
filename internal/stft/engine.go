// SPDX-License-Identifier: MIT
/*
Package stft implements a streaming short-time Fourier transform engine with
overlap-add resynthesis and a fixed latency of one window.

Signal path, per incoming sample:
- the sample is written into the input ring
- every HOP samples one cycle runs: the newest W samples are windowed,
  transformed, handed to the spectral Stage, inverse transformed, normalised
  and overlap-added into the output ring
- one sample is drained from the output ring and returned

Real-time discipline:
- every buffer, the FFT plan and the window/normalisation tables are
  allocated by NewEngine; Push, Process and the cycle never allocate
- single-threaded: one writer and one reader per ring, on the caller's thread
- cursor distances are fixed by Reset, so the read cursor cannot overtake the
  write cursor and no hot-path checks are needed
*/
package stft

// frameWorkspace holds the per-cycle scratch, sized once to W.
type frameWorkspace struct {
	raw      []float32    // window as read from the input ring
	frame    []float64    // windowed real input to the forward transform
	spectrum []complex128 // forward transform output, Stage input
	recon    []float64    // inverse transform output
	window   []float64    // analysis window coefficients
	gain     []float64    // per-offset 1/W and overlap-add normalisation
}

// Engine is the overlap-add STFT buffering engine.
type Engine struct {
	cfg       Config
	stage     Stage
	in        *Ring
	out       *Ring
	hop       HopScheduler
	transform *Transform
	workspace frameWorkspace
}

// NewEngine validates cfg and allocates everything the engine will ever use.
// A nil stage runs the identity passthrough.
func NewEngine(cfg Config, stage Stage) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stage == nil {
		stage = Identity
	}

	transform, err := NewTransform(cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	coeffs := cfg.Window.Coefficients(cfg.WindowSize)
	gain, err := overlapGains(coeffs, cfg.HopSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		stage:     stage,
		in:        NewRing(cfg.Capacity),
		out:       NewRing(cfg.Capacity),
		hop:       NewHopScheduler(cfg.HopSize),
		transform: transform,
		workspace: frameWorkspace{
			raw:      make([]float32, cfg.WindowSize),
			frame:    make([]float64, cfg.WindowSize),
			spectrum: make([]complex128, cfg.WindowSize),
			recon:    make([]float64, cfg.WindowSize),
			window:   coeffs,
			gain:     gain,
		},
	}
	e.Reset()

	return e, nil
}

// Reset returns the engine to its stream-start state without allocating.
//
// The input ring is pre-seeded with one window of silence: its write cursor
// starts at W and its read cursor at HOP, so the first cycle, after HOP
// samples, reads exactly the W samples ending at the write cursor. The output
// ring is drained from 0 and receives the first frame at HOP. Together these
// give every input sample an output position exactly W samples later.
func (e *Engine) Reset() {
	e.in.Reset(e.cfg.WindowSize, e.cfg.HopSize)
	e.out.Reset(e.cfg.HopSize, 0)
	e.hop.Reset()
}

// Push feeds one input sample and returns one output sample.
func (e *Engine) Push(x float32) float32 {
	e.in.Write(x)
	if e.hop.Tick() {
		e.cycle()
	}
	return e.out.ReadClear()
}

// Process runs Push over buf in place. Any block length works, including
// zero; the output stream does not depend on how it is chunked.
func (e *Engine) Process(buf []float32) {
	for i, x := range buf {
		buf[i] = e.Push(x)
	}
}

// cycle runs one analysis/synthesis pass over the newest window.
func (e *Engine) cycle() {
	ws := &e.workspace

	// The read cursor moves by HOP, not W: the trailing W-HOP samples of this
	// window lead the next one.
	e.in.Peek(ws.raw)
	e.in.Skip(e.cfg.HopSize)

	for i, x := range ws.raw {
		ws.frame[i] = float64(x) * ws.window[i]
	}

	spectrum := e.transform.Forward(ws.spectrum, ws.frame)
	spectrum = e.stage.Process(spectrum)
	e.transform.Inverse(ws.recon, spectrum)

	e.out.Accumulate(ws.recon, ws.gain)
	e.out.Advance(e.cfg.HopSize)
}

// Config returns the geometry the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Latency returns the end-to-end delay in samples, always W.
func (e *Engine) Latency() int { return e.cfg.WindowSize }

// Cycles returns the number of STFT cycles run since the last Reset.
func (e *Engine) Cycles() uint64 { return e.hop.Fired() }

// Pending returns the unread span of the input ring, which stays in
// [W-HOP, W) between calls to Push.
func (e *Engine) Pending() int { return e.in.Len() }
