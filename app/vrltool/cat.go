// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrltool

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danjacques/govita/protocol/vrl"
	"github.com/danjacques/govita/support/fmtutil"
	"github.com/danjacques/govita/vrlfile"

	"github.com/pkg/errors"
)

var catCommand = &command{
	usage: "[flags] FILE...",
	help:  "Validate VRL files and print their frames.",
	setup: func(fs *flagSet) runFunc {
		var (
			packets bool
			dump    bool
			quiet   bool
		)
		fs.BoolVar(&packets, "packets", false, "Print each packet in each frame.")
		fs.BoolVar(&dump, "dump", false, "Print the words of each frame.")
		fs.BoolVarP(&quiet, "quiet", "q", false, "Print only a summary of each file.")

		return func(c context.Context, e *env, args []string) error {
			if len(args) == 0 {
				return errors.New("no files specified")
			}

			var invalid int64
			for _, path := range args {
				p := catPrinter{
					w:       e.stdout,
					strict:  e.cfg.Strict,
					packets: packets && !quiet,
					dump:    dump && !quiet,
					quiet:   quiet,
				}
				if err := p.catFile(c, path); err != nil {
					return errors.Wrapf(err, "reading %q", path)
				}
				invalid += p.invalid
			}

			if invalid > 0 {
				return errors.Errorf("found %d invalid frame(s)", invalid)
			}
			return nil
		}
	},
}

type catPrinter struct {
	w       io.Writer
	strict  bool
	packets bool
	dump    bool
	quiet   bool

	frames  int64
	bare    int64
	invalid int64
	octets  int64
}

func (p *catPrinter) catFile(c context.Context, path string) error {
	r, err := (&vrlfile.ReaderConfig{}).Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	f := vrl.New()
	for {
		if err := c.Err(); err != nil {
			return err
		}

		bare, err := r.ReadFrame(f)
		switch {
		case err == io.EOF:
			fmt.Fprintf(p.w, "%s: %d frame(s) (%d bare), %d octet(s), %d invalid, compression %s\n",
				path, p.frames, p.bare, p.octets, p.invalid, r.Compression())
			return p.printMetadata(path)
		case err != nil:
			return err
		}

		p.printFrame(f, bare)
	}
}

func (p *catPrinter) printMetadata(path string) error {
	md, err := vrlfile.LoadMetadata(path)
	switch {
	case err == nil:
	case os.IsNotExist(errors.Cause(err)):
		return nil
	default:
		return err
	}

	fmt.Fprintf(p.w, "%s: recorded from %q at %s, %d frame(s) over %s\n",
		path, md.Source, md.Created.Format(time.RFC3339), md.NumFrames, md.Duration())
	if md.NumFrames != p.frames {
		return errors.Errorf("metadata lists %d frame(s), file holds %d", md.NumFrames, p.frames)
	}
	return nil
}

func (p *catPrinter) printFrame(f *vrl.Frame, bare bool) {
	index := p.frames
	p.frames++
	p.octets += int64(f.FrameLength())
	if bare {
		p.bare++
	}

	verr := f.Validate(p.strict, -1)
	if verr != nil {
		p.invalid++
	}
	if p.quiet {
		return
	}

	status := "OK"
	if verr != nil {
		status = fmt.Sprintf("INVALID (%s)", verr)
	}
	framing := "frame"
	if bare {
		framing = "bare packet"
	}
	fmt.Fprintf(p.w, "#%d %s %s: %s\n", index, framing, f, status)

	if p.dump {
		fmt.Fprintf(p.w, "%s\n", fmtutil.Words(f.Bytes()))
	}

	if p.packets {
		it := f.Iterator()
		it.Resolve = true
		for i := 0; it.HasNext(); i++ {
			pkt, err := it.Next()
			if err != nil {
				fmt.Fprintf(p.w, "  [%d] @%d: %s\n", i, it.Offset(), err)
				break
			}
			fmt.Fprintf(p.w, "  [%d] %s\n", i, pkt)
		}
	}
}
