package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "offboarding"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector is a prometheus.Collector for the offboarding workflow. A nil
// *Collector is valid and records nothing.
type Collector struct {
	transitions     *prometheus.CounterVec
	tokenRejections *prometheus.CounterVec
	remindersSent   *prometheus.CounterVec
	reminderErrors  prometheus.Counter
	notifications   *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transitions_total",
				Help:      "Workflow transitions attempted, by transition and result.",
			}, []string{"transition", "result"},
		),
		tokenRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "token_rejections_total",
				Help:      "Capability tokens rejected, by reason.",
			}, []string{"reason"},
		),
		remindersSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminders_sent_total",
				Help:      "Reminders dispatched, by waiting actor.",
			}, []string{"actor"},
		),
		reminderErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminder_errors_total",
				Help:      "Submissions the reminder scheduler failed to process.",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "notifications_total",
				Help:      "Notification dispatch attempts, by template and result.",
			}, []string{"template", "result"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.tokenRejections.Describe(ch)
	c.remindersSent.Describe(ch)
	c.reminderErrors.Describe(ch)
	c.notifications.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.tokenRejections.Collect(ch)
	c.remindersSent.Collect(ch)
	c.reminderErrors.Collect(ch)
	c.notifications.Collect(ch)
}

func (c *Collector) TransitionAttempted(transition, result string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(transition, result).Inc()
}

func (c *Collector) TokenRejected(reason string) {
	if c == nil {
		return
	}
	c.tokenRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) ReminderSent(actor string) {
	if c == nil {
		return
	}
	c.remindersSent.WithLabelValues(actor).Inc()
}

func (c *Collector) ReminderFailed() {
	if c == nil {
		return
	}
	c.reminderErrors.Inc()
}

func (c *Collector) NotificationAttempted(template, result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(template, result).Inc()
}
