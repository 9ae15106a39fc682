package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "messenger"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route template and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	grpcHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "grpc",
		Name:      "handled_total",
		Help:      "Unary gRPC calls completed, by status code.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})

	grpcHandlingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "Unary gRPC handler latency.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
	}, []string{"grpc_service", "grpc_method"})

	wsConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open websocket feed connections.",
	}, []string{"kind"})

	wsEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Websocket lifecycle events.",
	}, []string{"kind", "event"})

	amqpPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "amqp",
		Name:      "publish_errors_total",
		Help:      "Lifecycle events the broker rejected or never received.",
	})

	messagesInsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_inserted_total",
		Help:      "Messages stored, by message type.",
	}, []string{"message_type"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Room and friendship writes, by operation and outcome.",
	}, []string{"operation", "outcome"})
)

// HTTPMetricsMiddleware records request counts and latency per route template.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// GRPCServerMetricsUnaryInterceptor records unary call outcomes and latency.
func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcHandlingSeconds.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		grpcHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod splits "/pkg.Service/Method".
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

// TrackWSConnection counts an open connection until the returned func runs.
func TrackWSConnection(kind string) (release func()) {
	g := wsConnections.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncMessageInserted(messageType string) {
	messagesInsertedTotal.WithLabelValues(messageType).Inc()
}

// RecordOperation counts a write such as ("room_leave", "deleted").
func RecordOperation(operation, outcome string) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}
