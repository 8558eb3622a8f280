// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	senderFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_sender_frames",
		Help: "Count of VRL frames sent.",
	})

	senderPackets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_sender_packets",
		Help: "Count of VRT packets sent inside VRL frames.",
	})

	senderBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_sender_bytes",
		Help: "Count of VRL frame bytes sent.",
	})

	senderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_sender_errors",
		Help: "Count of errors encountered sending frames.",
	})

	receiverDatagrams = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_receiver_datagrams",
		Help: "Count of datagrams received.",
	})

	receiverBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_receiver_bytes",
		Help: "Count of datagram bytes received.",
	})

	receiverFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vrl_receiver_frames",
		Help: "Count of valid frames received, by framing.",
	}, []string{"framing"})

	receiverInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_receiver_invalid",
		Help: "Count of received datagrams discarded as invalid.",
	})

	receiverErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrl_receiver_errors",
		Help: "Count of errors encountered receiving datagrams.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		// Sender
		senderFrames,
		senderPackets,
		senderBytes,
		senderErrors,

		// Receiver
		receiverDatagrams,
		receiverBytes,
		receiverFrames,
		receiverInvalid,
		receiverErrors,
	)
}
