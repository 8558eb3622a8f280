// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package vrlfile

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	writerFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrlfile_writer_frames",
		Help: "Count of frames written to VRL files.",
	})

	writerBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrlfile_writer_bytes",
		Help: "Count of uncompressed frame bytes written to VRL files.",
	})

	readerFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vrlfile_reader_frames",
		Help: "Count of frames read from VRL files, by framing.",
	}, []string{"framing"})

	fileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vrlfile_errors",
		Help: "Count of VRL file errors encountered.",
	}, []string{"op"})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		writerFrames,
		writerBytes,
		readerFrames,
		fileErrors,
	)
}
