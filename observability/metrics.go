// Package observability aggregates relay counters for the health worker.
package observability

import "sync/atomic"

// Metrics holds atomic counters incremented on the hot paths.
type Metrics struct {
	Connects           uint64
	Disconnects        uint64
	MessagesRelayed    uint64
	DeliveredLive      uint64
	OfflineSkips       uint64
	InvalidMessages    uint64
	StorageFailures    uint64
	TypingRelayed      uint64
	TypingDropped      uint64
	PresenceBroadcasts uint64
}

// MetricsSnapshot is a consistent-enough copy for logging.
type MetricsSnapshot struct {
	Connects           uint64
	Disconnects        uint64
	MessagesRelayed    uint64
	DeliveredLive      uint64
	OfflineSkips       uint64
	InvalidMessages    uint64
	StorageFailures    uint64
	TypingRelayed      uint64
	TypingDropped      uint64
	PresenceBroadcasts uint64
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) IncrConnects()           { atomic.AddUint64(&m.Connects, 1) }
func (m *Metrics) IncrDisconnects()        { atomic.AddUint64(&m.Disconnects, 1) }
func (m *Metrics) IncrMessagesRelayed()    { atomic.AddUint64(&m.MessagesRelayed, 1) }
func (m *Metrics) IncrDeliveredLive()      { atomic.AddUint64(&m.DeliveredLive, 1) }
func (m *Metrics) IncrOfflineSkips()       { atomic.AddUint64(&m.OfflineSkips, 1) }
func (m *Metrics) IncrInvalidMessages()    { atomic.AddUint64(&m.InvalidMessages, 1) }
func (m *Metrics) IncrStorageFailures()    { atomic.AddUint64(&m.StorageFailures, 1) }
func (m *Metrics) IncrTypingRelayed()      { atomic.AddUint64(&m.TypingRelayed, 1) }
func (m *Metrics) IncrTypingDropped()      { atomic.AddUint64(&m.TypingDropped, 1) }
func (m *Metrics) IncrPresenceBroadcasts() { atomic.AddUint64(&m.PresenceBroadcasts, 1) }

func (m *Metrics) GetLatest() MetricsSnapshot {
	return MetricsSnapshot{
		Connects:           atomic.LoadUint64(&m.Connects),
		Disconnects:        atomic.LoadUint64(&m.Disconnects),
		MessagesRelayed:    atomic.LoadUint64(&m.MessagesRelayed),
		DeliveredLive:      atomic.LoadUint64(&m.DeliveredLive),
		OfflineSkips:       atomic.LoadUint64(&m.OfflineSkips),
		InvalidMessages:    atomic.LoadUint64(&m.InvalidMessages),
		StorageFailures:    atomic.LoadUint64(&m.StorageFailures),
		TypingRelayed:      atomic.LoadUint64(&m.TypingRelayed),
		TypingDropped:      atomic.LoadUint64(&m.TypingDropped),
		PresenceBroadcasts: atomic.LoadUint64(&m.PresenceBroadcasts),
	}
}
