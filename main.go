// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"fftpassthrough/cmd"
	"fftpassthrough/internal/audio"
	"fftpassthrough/internal/build"
	"fftpassthrough/internal/config"
	"fftpassthrough/internal/log"
	"fftpassthrough/internal/monitor"
	"fftpassthrough/internal/plugin"
	"fftpassthrough/internal/render"
	"fftpassthrough/internal/transport"
	"fftpassthrough/internal/transport/udp"
	"fftpassthrough/internal/tui"
)

// main is the entry point for the passthrough engine.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, render, version)
//   - Build the processor, monitor tap and side channels
//
// 2. Concurrent Phase (Hot Path):
//   - Start the duplex stream; the processor runs on the audio thread
//   - Publishers read the tap from their own goroutines
//   - Start recording if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the meter's quit key
//   - Stop recording and publishers
//   - Close the stream and release the processor
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build info incomplete: %v", err)
	}

	// One thread for the audio callback, one for publishers and UI.
	runtime.GOMAXPROCS(2)

	cfg, opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Command == "" {
		return // help or --version
	}
	log.SetLevelName(cfg.LogLevel)

	switch opts.Command {
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
	case cmd.CommandList:
		err = listDevices(opts.Interactive)
	case cmd.CommandRender:
		err = renderFile(cfg, opts)
	case cmd.CommandLive:
		err = runLive(cfg, opts)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func listDevices(interactive bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !interactive {
		return audio.ListDevices(os.Stdout)
	}

	id, ok, err := tui.PickDevice(audio.HostDevices, tui.AnyDevice)
	if err != nil || !ok {
		return err
	}
	fmt.Printf("Selected device %d. Pass --input-device %d or --output-device %d.\n", id, id, id)
	return nil
}

func renderFile(cfg *config.Config, opts *cmd.Options) error {
	geometry, err := cfg.Geometry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := render.RenderFile(ctx, opts.Input, opts.Output, render.Options{
		STFT:       geometry,
		BlockSize:  opts.BlockSize,
		BitDepth:   opts.BitDepth,
		Compensate: opts.Compensate,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Rendered %d frames at %d Hz (%d-bit, %d cycles, latency %d samples) to %s\n",
		stats.OutputFrames, stats.SampleRate, stats.BitDepth, stats.Cycles, stats.Latency, opts.Output)
	return nil
}

// liveSource feeds the meter from the running engine and its own band meter.
type liveSource struct {
	*audio.Engine
	meter *monitor.BandMeter
}

func (s liveSource) Levels() ([]monitor.BandLevel, error) { return s.meter.Update() }

func runLive(cfg *config.Config, opts *cmd.Options) error {
	geometry, err := cfg.Geometry()
	if err != nil {
		return err
	}

	// The tap only reads the spectrum; the passthrough stays bit-exact.
	tap, err := monitor.NewTap(geometry.WindowSize, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}
	processor := plugin.New(geometry, tap)

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg, processor)
	if err != nil {
		return err
	}

	closers, err := startSideChannels(cfg, tap, engine)
	defer closeAll(closers)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// CRITICAL: Start of real-time audio processing. PortAudio begins
	// calling the stream callback as soon as Start returns.
	if err := engine.Start(); err != nil {
		return err
	}

	if opts.Record || cfg.Recording.Enabled {
		path, err := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err != nil {
			engine.Close()
			return err
		}
		if err := engine.StartRecording(path); err != nil {
			engine.Close()
			return err
		}
		defer fmt.Printf("\nRecording saved to: %s\n", path)
	}

	if opts.TUI {
		meter, err := monitor.NewBandMeter(tap, nil)
		if err != nil {
			engine.Close()
			return err
		}
		// Log lines would tear the alternate screen.
		log.SetOutput(io.Discard)
		err = tui.RunMeter(plugin.Name, liveSource{Engine: engine, meter: meter}, tui.DefaultRefresh)
		log.SetOutput(os.Stderr)
		if err != nil {
			log.Errorf("Meter: %v", err)
		}
	} else {
		fmt.Printf("%s running, latency %d samples. Press Ctrl+C to stop.\n", plugin.Name, engine.LatencySamples())
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		<-done
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := engine.StopRecording(); err != nil {
		log.Errorf("Error stopping recording: %v", err)
	}
	return engine.Close()
}

// startSideChannels starts every enabled monitor output. The returned closers
// are valid even when an error is returned.
func startSideChannels(cfg *config.Config, tap *monitor.Tap, cycles monitor.CycleCounter) ([]io.Closer, error) {
	var closers []io.Closer
	t := cfg.Transport

	if t.UDP.Enabled {
		sender, err := udp.NewSender(t.UDP.TargetAddress)
		if err != nil {
			return closers, err
		}
		closers = append(closers, sender)

		pub, err := udp.NewPublisher(t.UDP.SendInterval, sender, tap)
		if err != nil {
			return closers, err
		}
		pub.Start()
		closers = append(closers, pub)
	}

	var transports []transport.Transport
	if t.LogEnabled {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if t.WebSocket.Enabled {
		ws, err := transport.NewWebSocketTransport(t.WebSocket.Addr, t.WebSocket.Path)
		if err != nil {
			return closers, err
		}
		transports = append(transports, ws)
	}
	if t.Redis.Enabled {
		rt, err := transport.NewRedisTransport(transport.RedisOptions{
			Addr:     t.Redis.Addr,
			Password: t.Redis.Password,
			DB:       t.Redis.DB,
			Channel:  t.Redis.Channel,
		})
		if err != nil {
			return closers, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := rt.Ping(ctx); err != nil {
			log.Warnf("Redis: %v; publishing anyway", err)
		}
		cancel()
		transports = append(transports, rt)
	}

	// One band meter per publisher; meters keep per-call state.
	for _, tr := range transports {
		closers = append(closers, tr)

		meter, err := monitor.NewBandMeter(tap, nil)
		if err != nil {
			return closers, err
		}
		pub, err := monitor.NewPublisher(t.MonitorInterval, meter, tr, cycles)
		if err != nil {
			return closers, err
		}
		pub.Start()
		closers = append(closers, pub)
	}

	return closers, nil
}

// closeAll closes in reverse start order, so publishers stop before the
// transports they write to.
func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Errorf("Error closing %T: %v", closers[i], err)
		}
	}
}
