package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration records request duration in seconds
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// StatusCategoryCounter groups responses into 2xx / 4xx / 5xx
	StatusCategoryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_status_category_total",
			Help: "Total number of responses by status category",
		},
		[]string{"category"},
	)

	ConsignmentsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consignments_created_total",
		Help: "Bags shipped to resellers",
	})

	ConsignmentsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consignments_closed_total",
		Help: "Bags settled",
	})

	SettledValue = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consignment_settled_value_total",
		Help: "Money settled on bag close, by component (sold, commission, net)",
	}, []string{"component"})

	ReturnScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consignment_return_scans_total",
		Help: "Return scans by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		StatusCategoryCounter,
		ConsignmentsCreated,
		ConsignmentsClosed,
		SettledValue,
		ReturnScans,
	)
}

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		RequestCounter.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())

		switch {
		case status >= 500:
			StatusCategoryCounter.WithLabelValues("5xx").Inc()
		case status >= 400:
			StatusCategoryCounter.WithLabelValues("4xx").Inc()
		case status >= 200 && status < 300:
			StatusCategoryCounter.WithLabelValues("2xx").Inc()
		}
	}
}

// ObserveSettlement adds a closed bag's money to the settled counters.
func ObserveSettlement(sold, commission, net decimal.Decimal) {
	ConsignmentsClosed.Inc()
	SettledValue.WithLabelValues("sold").Add(sold.InexactFloat64())
	SettledValue.WithLabelValues("commission").Add(commission.InexactFloat64())
	SettledValue.WithLabelValues("net").Add(net.InexactFloat64())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
