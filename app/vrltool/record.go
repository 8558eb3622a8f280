// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrltool

import (
	"context"

	"github.com/danjacques/govita/support/network"
	"github.com/danjacques/govita/transport"
	"github.com/danjacques/govita/vrlfile"

	"github.com/pkg/errors"
)

var recordCommand = &command{
	usage: "[flags] ADDRESS OUTPUT",
	help:  "Receive frames over UDP on ADDRESS (host:port) and write them to a file.",
	setup: func(fs *flagSet) runFunc {
		fs.addFileFlags()
		fs.addNetworkFlags()
		fs.DurationVar(&fs.cfg.Duration, "duration", fs.cfg.Duration, "If >0, stop recording after this long.")

		var count int64
		fs.Int64Var(&count, "count", 0, "If >0, stop recording after this many frames.")

		return func(c context.Context, e *env, args []string) error {
			if len(args) != 2 {
				return errors.New("expected ADDRESS and OUTPUT")
			}
			return record(c, e, args[0], args[1], count)
		}
	},
}

func record(c context.Context, e *env, address, output string, count int64) error {
	rc, err := network.ResolveUDP4(address, e.cfg.Interface)
	if err != nil {
		return err
	}
	rc.BufferSize = e.cfg.BufferSize

	conn, err := rc.ListenUDP4()
	if err != nil {
		return errors.Wrapf(err, "listening on %s", rc)
	}

	recv := transport.Receiver{
		Logger: e.logger,
		Strict: e.cfg.Strict,
	}
	if err := recv.Start(network.UDPDatagramReceiver(conn)); err != nil {
		return err
	}
	defer recv.Close()

	wcfg := vrlfile.WriterConfig{
		Compression:      e.cfg.Compression,
		CompressionLevel: e.cfg.CompressionLevel,
		Metadata:         true,
		Source:           rc.String(),
	}
	w, err := wcfg.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if w != nil {
			_ = w.Close()
		}
	}()

	if e.cfg.Duration > 0 {
		var cancelFunc context.CancelFunc
		c, cancelFunc = context.WithTimeout(c, e.cfg.Duration)
		defer cancelFunc()
	}

	runErr := recordFrames(c, &recv, w, count)
	if errors.Cause(runErr) == context.DeadlineExceeded || errors.Cause(runErr) == context.Canceled {
		runErr = nil
	}

	frames, octets := w.NumFrames(), w.NumBytes()
	err, w = w.Close(), nil
	switch {
	case runErr != nil:
		return runErr
	case err != nil:
		return errors.Wrap(err, "closing output")
	}

	e.logger.Infof("Recorded %d frame(s) (%d octet(s)) to %q.", frames, octets, output)
	return nil
}

func recordFrames(c context.Context, recv *transport.Receiver, w *vrlfile.Writer, count int64) error {
	for count <= 0 || w.NumFrames() < count {
		d, err := recv.Receive(c)
		if err != nil {
			return err
		}

		err = w.WriteFrame(d.Frame)
		d.Release()
		if err != nil {
			return err
		}
	}
	return nil
}
