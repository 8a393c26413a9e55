package plm

import (
	"sync/atomic"
)

// ConnMetrics contains atomic metrics for a modem connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnMetrics struct {
	// FrameSendCount indicates the number of frames written to the transport.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames decoded from the transport.
	FrameRecvCount atomic.Uint64
	// ResyncByteCount indicates the number of bytes discarded as line noise.
	ResyncByteCount atomic.Uint64
	// StaleFrameCount indicates the number of responses no request was waiting for.
	StaleFrameCount atomic.Uint64
	// EventCount indicates the number of frames published to event streams.
	EventCount atomic.Uint64

	// TimeoutCount indicates the number of requests failed with ErrCommandTimeout.
	TimeoutCount atomic.Uint64
	// NakCount indicates the number of requests failed with ErrModemNak.
	NakCount atomic.Uint64
	// InflightCount indicates the number of requests waiting for a response.
	InflightCount atomic.Int64
}

func (m *ConnMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *ConnMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *ConnMetrics) incResyncByteCount() {
	m.ResyncByteCount.Add(1)
}

func (m *ConnMetrics) incStaleFrameCount() {
	m.StaleFrameCount.Add(1)
}

func (m *ConnMetrics) incEventCount() {
	m.EventCount.Add(1)
}

func (m *ConnMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ConnMetrics) incNakCount() {
	m.NakCount.Add(1)
}

func (m *ConnMetrics) incInflightCount() {
	m.InflightCount.Add(1)
}

func (m *ConnMetrics) decInflightCount() {
	m.InflightCount.Add(-1)
}
