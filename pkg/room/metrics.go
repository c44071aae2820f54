package room

import "time"

// Metrics 房间监控接口
type Metrics interface {
	IncrementMessageCount(kind string)
	IncrementMessageErrors(kind string)
	RecordBroadcastLatency(d time.Duration)
	IncrementDroppedMessages()
	IncrementEvictions()
	IncrementPersistResult(result string)
	SetRoomCount(count int)
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) IncrementMessageCount(string)         {}
func (NoopMetrics) IncrementMessageErrors(string)        {}
func (NoopMetrics) RecordBroadcastLatency(time.Duration) {}
func (NoopMetrics) IncrementDroppedMessages()            {}
func (NoopMetrics) IncrementEvictions()                  {}
func (NoopMetrics) IncrementPersistResult(string)        {}
func (NoopMetrics) SetRoomCount(int)                     {}
