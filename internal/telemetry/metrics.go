// Package telemetry records object model activity as Prometheus metrics.
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/conduit-lang/mop/pkg/mop"
)

const namespace = "mop"

// Collector implements mop.Observer on a private registry.
type Collector struct {
	registry *prometheus.Registry

	TypesComposed       *prometheus.CounterVec
	TypesExtended       *prometheus.CounterVec
	CompositionFailures *prometheus.CounterVec
	Instances           *prometheus.CounterVec
	ComposeDuration     *prometheus.HistogramVec
}

var _ mop.Observer = (*Collector)(nil)

// New creates a collector with its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		TypesComposed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "types_composed_total",
				Help:      "Types declared successfully",
			},
			[]string{"kind"},
		),
		TypesExtended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "types_extended_total",
				Help:      "Successful extensions of existing types",
			},
			[]string{"kind"},
		),
		CompositionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "composition_failures_total",
				Help:      "Rejected declarations and extensions by error code",
			},
			[]string{"kind", "code"},
		),
		Instances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_constructed_total",
				Help:      "Instances constructed by class",
			},
			[]string{"class"},
		),
		ComposeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compose_duration_seconds",
				Help:      "Time spent composing a type",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// TypeComposed implements mop.Observer.
func (c *Collector) TypeComposed(kind mop.TypeKind, _ string, elapsed time.Duration) {
	c.TypesComposed.WithLabelValues(kind.String()).Inc()
	c.ComposeDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// TypeExtended implements mop.Observer.
func (c *Collector) TypeExtended(kind mop.TypeKind, _ string, _ uint64, elapsed time.Duration) {
	c.TypesExtended.WithLabelValues(kind.String()).Inc()
	c.ComposeDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// CompositionFailed implements mop.Observer.
func (c *Collector) CompositionFailed(kind mop.TypeKind, _ string, err error) {
	code := "unknown"
	var mopErr *mop.Error
	if errors.As(err, &mopErr) {
		code = string(mopErr.Code)
	}
	c.CompositionFailures.WithLabelValues(kind.String(), code).Inc()
}

// InstanceConstructed implements mop.Observer.
func (c *Collector) InstanceConstructed(class string) {
	c.Instances.WithLabelValues(class).Inc()
}

// WriteText writes every metric in the Prometheus text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
