// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrltool

import (
	"context"
	"io"
	"time"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/support/network"
	"github.com/danjacques/govita/transport"
	"github.com/danjacques/govita/vrlfile"

	"github.com/pkg/errors"
)

var sendCommand = &command{
	usage: "[flags] INPUT ADDRESS",
	help:  "Send the frames of a file over UDP to ADDRESS (host:port).",
	setup: func(fs *flagSet) runFunc {
		fs.addFrameFlags()
		fs.addNetworkFlags()
		fs.Float64Var(&fs.cfg.Rate, "rate", fs.cfg.Rate, "If >0, the maximum number of frames to send per second.")

		var reframe, pace bool
		fs.BoolVar(&reframe, "reframe", false,
			"Rebuild frames under --max-frame-length instead of sending them as stored.")
		fs.BoolVar(&pace, "pace", false,
			"Send frames at the pace they were recorded, from the file's metadata.")

		return func(c context.Context, e *env, args []string) error {
			if len(args) != 2 {
				return errors.New("expected INPUT and ADDRESS")
			}
			if pace && e.cfg.Rate > 0 {
				return errors.New("--pace and --rate cannot be combined")
			}
			return send(c, e, args[0], args[1], reframe, pace)
		}
	},
}

// pacer schedules frames at the offsets recorded in a file's metadata,
// relative to start.
type pacer struct {
	start   time.Time
	offsets []time.Duration
}

// delay returns how long to wait at now before sending frame index. Frames
// without a recorded offset are not delayed.
func (p *pacer) delay(index int64, now time.Time) time.Duration {
	if index < 0 || index >= int64(len(p.offsets)) {
		return 0
	}
	return p.start.Add(p.offsets[index] - p.offsets[0]).Sub(now)
}

func (p *pacer) wait(c context.Context, index int64) error {
	d := p.delay(index, time.Now())
	if d <= 0 {
		return c.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.Done():
		return c.Err()
	}
}

func send(c context.Context, e *env, input, address string, reframe, pace bool) error {
	var p *pacer
	if pace {
		md, err := vrlfile.LoadMetadata(input)
		if err != nil {
			return err
		}
		p = &pacer{offsets: md.Offsets}
		e.logger.Infof("Pacing %d frame(s) recorded from %q over %s.", md.NumFrames, md.Source, md.Duration())
	}

	rc, err := network.ResolveUDP4(address, e.cfg.Interface)
	if err != nil {
		return err
	}
	rc.BufferSize = e.cfg.BufferSize

	ds := network.ResilientDatagramSender{
		Factory: rc.DatagramSender,
	}
	defer ds.Close()

	rcfg := vrlfile.ReaderConfig{
		Logger:   e.logger,
		Validate: true,
		Strict:   e.cfg.Strict,
	}
	r, err := rcfg.Open(input)
	if err != nil {
		return err
	}
	defer r.Close()

	fs := transport.FrameSender{
		MaxFrameLength: e.cfg.MaxFrameLength,
		OmitCRC:        e.cfg.OmitCRC,
		Logger:         e.logger,
	}

	var tick <-chan time.Time
	if e.cfg.Rate > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / e.cfg.Rate))
		defer t.Stop()
		tick = t.C
	}

	if p != nil {
		p.start = time.Now()
	}

	f := vrl.New()
	for {
		_, err := r.ReadFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if p != nil {
			if err := p.wait(c, r.NumFrames()-1); err != nil {
				return err
			}
		} else if tick != nil {
			select {
			case <-tick:
			case <-c.Done():
				return c.Err()
			}
		} else if err := c.Err(); err != nil {
			return err
		}

		if !reframe {
			if err := fs.SendFrame(&ds, f); err != nil {
				return err
			}
			continue
		}

		for it := f.Iterator(); it.HasNext(); {
			p, err := it.Next()
			if err != nil {
				return err
			}
			if err := fs.SendOrEnqueue(&ds, p); err != nil {
				return err
			}
		}
	}
	if err := fs.Flush(&ds); err != nil {
		return err
	}

	e.logger.Infof("Sent %d frame(s) from %q to %s.", r.NumFrames(), input, rc)
	return nil
}
