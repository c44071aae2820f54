// Package metrics Prometheus 指标，同时实现 ws.Metrics 与 room.Metrics
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomcast"

// Prometheus 指标集合
type Prometheus struct {
	registry *prometheus.Registry

	connections         prometheus.Gauge
	connectionsTotal    prometheus.Counter
	disconnectsTotal    prometheus.Counter
	connectionsRejected *prometheus.CounterVec
	readErrors          prometheus.Counter
	writeErrors         prometheus.Counter

	messages         *prometheus.CounterVec
	messageErrors    *prometheus.CounterVec
	broadcastLatency prometheus.Histogram
	dropped          prometheus.Counter
	evictions        prometheus.Counter
	persist          *prometheus.CounterVec
	rooms            prometheus.Gauge
}

// New 创建并注册全部指标，附带 Go 运行时与进程指标
func New() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ws", Name: "connections",
			Help: "Current number of open websocket connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ws", Name: "connections_total",
			Help: "Total number of accepted websocket connections.",
		}),
		disconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ws", Name: "disconnects_total",
			Help: "Total number of closed websocket connections.",
		}),
		connectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ws", Name: "connections_rejected_total",
			Help: "Rejected websocket upgrades by reason.",
		}, []string{"reason"}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ws", Name: "read_errors_total",
			Help: "Websocket read errors.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ws", Name: "write_errors_total",
			Help: "Websocket write errors.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "room", Name: "messages_total",
			Help: "Inbound room messages by kind.",
		}, []string{"kind"}),
		messageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "room", Name: "message_errors_total",
			Help: "Inbound room messages that failed by kind.",
		}, []string{"kind"}),
		broadcastLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "room", Name: "broadcast_duration_seconds",
			Help:    "Time spent enqueueing one broadcast to all room members.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "room", Name: "dropped_messages_total",
			Help: "Messages that could not be delivered to a member.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "room", Name: "evictions_total",
			Help: "Connections evicted after a failed delivery.",
		}),
		persist: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "room", Name: "persist_total",
			Help: "Document persistence attempts by result.",
		}, []string{"result"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "room", Name: "rooms",
			Help: "Current number of non-empty rooms.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.connections, p.connectionsTotal, p.disconnectsTotal, p.connectionsRejected, p.readErrors, p.writeErrors,
		p.messages, p.messageErrors, p.broadcastLatency, p.dropped, p.evictions, p.persist, p.rooms,
	)
	return p
}

// Handler 暴露 /metrics
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry 底层注册表
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) IncrementConnections()        { p.connectionsTotal.Inc() }
func (p *Prometheus) DecrementConnections()        { p.disconnectsTotal.Inc() }
func (p *Prometheus) SetConnectionCount(count int) { p.connections.Set(float64(count)) }
func (p *Prometheus) IncrementRejectedConnections(reason string) {
	p.connectionsRejected.WithLabelValues(reason).Inc()
}
func (p *Prometheus) IncrementReadErrors()  { p.readErrors.Inc() }
func (p *Prometheus) IncrementWriteErrors() { p.writeErrors.Inc() }

func (p *Prometheus) IncrementMessageCount(kind string)  { p.messages.WithLabelValues(kind).Inc() }
func (p *Prometheus) IncrementMessageErrors(kind string) { p.messageErrors.WithLabelValues(kind).Inc() }
func (p *Prometheus) RecordBroadcastLatency(d time.Duration) {
	p.broadcastLatency.Observe(d.Seconds())
}
func (p *Prometheus) IncrementDroppedMessages()            { p.dropped.Inc() }
func (p *Prometheus) IncrementEvictions()                  { p.evictions.Inc() }
func (p *Prometheus) IncrementPersistResult(result string) { p.persist.WithLabelValues(result).Inc() }
func (p *Prometheus) SetRoomCount(count int)               { p.rooms.Set(float64(count)) }
