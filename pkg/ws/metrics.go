package ws

// Metrics 连接层监控接口
type Metrics interface {
	IncrementConnections()
	DecrementConnections()
	SetConnectionCount(count int)
	IncrementRejectedConnections(reason string)

	IncrementReadErrors()
	IncrementWriteErrors()
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (m *NoopMetrics) IncrementConnections()               {}
func (m *NoopMetrics) DecrementConnections()               {}
func (m *NoopMetrics) SetConnectionCount(count int)        {}
func (m *NoopMetrics) IncrementRejectedConnections(string) {}
func (m *NoopMetrics) IncrementReadErrors()                {}
func (m *NoopMetrics) IncrementWriteErrors()               {}
