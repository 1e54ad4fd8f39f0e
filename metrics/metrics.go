// Package metrics exposes prometheus collectors for domain events and HTTP
// traffic on a private registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wordlewise"

// Group event labels.
const (
	GroupCreated         = "created"
	GroupJoined          = "joined"
	GroupLeft            = "left"
	GroupDeleted         = "deleted"
	GroupMemberRemoved   = "member_removed"
	GroupRoleChanged     = "role_changed"
	GroupCodeRegenerated = "code_regenerated"
)

type Metrics struct {
	registry *prometheus.Registry

	scores          *prometheus.CounterVec
	groupEvents     *prometheus.CounterVec
	authAttempts    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New builds a registry with the process and Go runtime collectors plus the
// application collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Score writes by action (recorded, deleted).",
		}, []string{"action"}),
		groupEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_events_total",
			Help:      "Group membership events by type.",
		}, []string{"event"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Login and registration attempts by outcome.",
		}, []string{"action", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scores,
		m.groupEvents,
		m.authAttempts,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ScoreRecorded() {
	m.scores.WithLabelValues("recorded").Inc()
}

func (m *Metrics) ScoreDeleted() {
	m.scores.WithLabelValues("deleted").Inc()
}

func (m *Metrics) GroupEvent(event string) {
	m.groupEvents.WithLabelValues(event).Inc()
}

// AuthAttempt counts a login or register call; outcome is "success" or
// "failure".
func (m *Metrics) AuthAttempt(action string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.authAttempts.WithLabelValues(action, outcome).Inc()
}

// Middleware observes request latency. Register it before the request
// logger so the status it sees is the one the error handler wrote.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
