// Copyright (c) 2026 - The Event Horizon authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports Prometheus metrics for the command bus: handled
// commands, store operations, published events and the ring backlog.
//
//	m, _ := metrics.New()
//	if err := m.Register(prometheus.DefaultRegisterer); err != nil { ... }
//	bus, _ := disruptor.NewBus(m.NewEventStore(store), m.NewEventPublisher(pub),
//		disruptor.WithCommandHandlerMiddleware(m.CommandHandlerMiddleware()))
//	m.WatchBacklog(bus)
package metrics

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/commandbus/disruptor"
)

// Metric labels.
const (
	LabelCommandType = "command_type"
	LabelEventType   = "event_type"
	LabelOperation   = "operation"
	LabelStatus      = "status"
	LabelErrorType   = "error_type"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type backlogSource struct {
	Backlogger
}

// Backlogger reports the number of accepted but unprocessed commands, such as
// the disruptor.Bus.
type Backlogger interface {
	Backlog() int64
}

// Metrics holds the Prometheus collectors.
type Metrics struct {
	namespace string
	subsystem string
	backlog   atomic.Pointer[backlogSource]

	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	commandsInFlight  prometheus.Gauge
	storeOpsTotal     *prometheus.CounterVec
	storeOpDuration   *prometheus.HistogramVec
	eventsSavedTotal  *prometheus.CounterVec
	publishedTotal    *prometheus.CounterVec
	publishErrorTotal prometheus.Counter
	errorsTotal       *prometheus.CounterVec
	backlogGauge      prometheus.GaugeFunc
}

// Option is an option setter used to configure creation.
type Option func(*Metrics) error

// WithNamespace sets the Prometheus namespace, "ringhorizon" by default.
func WithNamespace(namespace string) Option {
	return func(m *Metrics) error {
		if namespace == "" {
			return fmt.Errorf("missing namespace")
		}

		m.namespace = namespace

		return nil
	}
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Metrics) error {
		m.subsystem = subsystem

		return nil
	}
}

// New creates the collectors. They must be registered before they are scraped.
func New(options ...Option) (*Metrics, error) {
	m := &Metrics{
		namespace: "ringhorizon",
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(m); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	m.commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commands_total",
		Help:      "Total number of handled commands.",
	}, []string{LabelCommandType, LabelStatus})

	m.commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "command_duration_seconds",
		Help:      "Duration of command handling in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{LabelCommandType})

	m.commandsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commands_in_flight",
		Help:      "Number of commands currently being handled.",
	})

	m.storeOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "eventstore_operations_total",
		Help:      "Total number of event store operations.",
	}, []string{LabelOperation, LabelStatus})

	m.storeOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "eventstore_operation_duration_seconds",
		Help:      "Duration of event store operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{LabelOperation})

	m.eventsSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_saved_total",
		Help:      "Total number of events saved in the event store.",
	}, []string{LabelEventType})

	m.publishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_published_total",
		Help:      "Total number of published events.",
	}, []string{LabelEventType})

	m.publishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Total number of failed event publications.",
	})

	m.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Total number of errors by type.",
	}, []string{LabelErrorType})

	m.backlogGauge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "backlog",
		Help:      "Number of accepted commands not yet processed by a worker.",
	}, func() float64 {
		if src := m.backlog.Load(); src != nil {
			return float64(src.Backlog())
		}

		return 0
	})

	return m, nil
}

// Collectors returns all collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal,
		m.commandDuration,
		m.commandsInFlight,
		m.storeOpsTotal,
		m.storeOpDuration,
		m.eventsSavedTotal,
		m.publishedTotal,
		m.publishErrorTotal,
		m.errorsTotal,
		m.backlogGauge,
	}
}

// WatchBacklog exports the backlog of a bus, such as the disruptor.Bus, as a
// gauge. It replaces any previously watched bus.
func (m *Metrics) WatchBacklog(b Backlogger) {
	if b == nil {
		m.backlog.Store(nil)

		return
	}

	m.backlog.Store(&backlogSource{b})
}

// Register registers all collectors with a registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("could not register collector: %w", err)
		}
	}

	return nil
}

func (m *Metrics) recordError(err error) {
	m.errorsTotal.WithLabelValues(errorType(err)).Inc()
}

// errorType names the known errors of the bus and the stores.
func errorType(err error) string {
	var handlerErr *disruptor.HandlerError

	switch {
	case err == nil:
		return "none"
	case errors.Is(err, rh.ErrIncorrectEventVersion):
		return "concurrency_conflict"
	case errors.Is(err, disruptor.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, disruptor.ErrHandlerNotFound):
		return "handler_not_found"
	case errors.Is(err, disruptor.ErrBusStopped):
		return "bus_stopped"
	case errors.Is(err, disruptor.ErrUnexpectedAggregate):
		return "unexpected_aggregate"
	case errors.Is(err, disruptor.ErrPanic):
		return "panic"
	case errors.Is(err, rh.ErrCouldNotSaveEvents):
		return "save_failed"
	case errors.Is(err, rh.ErrCouldNotLoadEvents), errors.Is(err, rh.ErrCouldNotUnmarshalEvent):
		return "load_failed"
	case errors.As(err, &handlerErr):
		return "handler"
	default:
		return "unknown"
	}
}
