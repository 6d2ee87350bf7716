package tempo

import (
	"context"
	"fmt"
	"time"

	"github.com/rakyll/portmidi"
	"go.uber.org/zap"
)

const (
	statusTimingClock = 0xF8
	statusStart       = 0xFA
	statusStop        = 0xFC
)

// ListenMIDI reads the default MIDI input and feeds timing clock messages to
// clock until ctx is cancelled. It returns once the device is open; reading
// happens on its own goroutine.
func ListenMIDI(ctx context.Context, clock *MIDIClock, post func(func()), log *zap.Logger) error {
	if err := portmidi.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portmidi: %w", err)
	}
	id := portmidi.DefaultInputDeviceID()
	if id < 0 {
		portmidi.Terminate()
		return fmt.Errorf("no MIDI input device available")
	}
	if info := portmidi.Info(id); info != nil {
		log.Info("Listening for MIDI clock", zap.String("device", info.Name))
	}
	in, err := portmidi.NewInputStream(id, 1024)
	if err != nil {
		portmidi.Terminate()
		return fmt.Errorf("failed to open MIDI input: %w", err)
	}

	go func() {
		defer portmidi.Terminate()
		defer in.Close()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			events, err := in.Read(1024)
			if err != nil {
				log.Warn("MIDI read failed", zap.Error(err))
				continue
			}
			for _, ev := range events {
				status := ev.Status
				at := time.Duration(ev.Timestamp) * time.Millisecond
				switch status {
				case statusTimingClock:
					post(func() {
						if bpm, changed := clock.Pulse(at); changed {
							log.Debug("MIDI clock tempo", zap.Float64("bpm", bpm))
						}
					})
				case statusStart, statusStop:
					post(clock.Reset)
				}
			}
		}
	}()
	return nil
}
