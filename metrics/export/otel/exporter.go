package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Instrument names.
const (
	LoginsName          = "gosession.logins"
	RefreshesName       = "gosession.session.refreshes"
	SessionsIssuedName  = "gosession.sessions.issued"
	SignOutsName        = "gosession.sign_outs"
	OAuthFlowsName      = "gosession.oauth.flows"
	RedirectsName       = "gosession.redirects.rejected"
	AuditDroppedName    = "gosession.audit.dropped"
	RefreshBucketsName  = "gosession.session.refresh.duration.buckets"
	RefreshSamplesName  = "gosession.session.refresh.duration.samples"
	outcomeKey          = attribute.Key("outcome")
	bucketBoundKey      = attribute.Key("le")
	providerStageKey    = attribute.Key("stage")
	refreshBucketsCount = 8
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// point maps one engine counter onto an attribute set of an instrument.
type point struct {
	id    goSession.MetricID
	attrs attribute.Set
}

type counterSpec struct {
	name   string
	desc   string
	points []point
}

func outcome(id goSession.MetricID, value string) point {
	return point{id: id, attrs: attribute.NewSet(outcomeKey.String(value))}
}

func stage(id goSession.MetricID, value string) point {
	return point{id: id, attrs: attribute.NewSet(providerStageKey.String(value))}
}

// counterSpecs groups the engine counters by flow. Every counter in
// internaldefs.CounterDefs appears exactly once.
var counterSpecs = []counterSpec{
	{
		name: LoginsName,
		desc: "Credential login attempts by outcome.",
		points: []point{
			outcome(goSession.MetricLoginSuccess, "success"),
			outcome(goSession.MetricLoginFailure, "failure"),
			outcome(goSession.MetricLoginWrongMethod, "wrong_method"),
			outcome(goSession.MetricLoginUnverified, "unverified"),
			outcome(goSession.MetricLoginRateLimited, "rate_limited"),
		},
	},
	{
		name: RefreshesName,
		desc: "Session token refreshes by outcome.",
		points: []point{
			outcome(goSession.MetricRefreshSuccess, "success"),
			outcome(goSession.MetricRefreshFailure, "failure"),
			outcome(goSession.MetricRefreshUserVanished, "user_vanished"),
		},
	},
	{
		name:   SessionsIssuedName,
		desc:   "Signed session tokens.",
		points: []point{{id: goSession.MetricSessionIssued}},
	},
	{
		name:   SignOutsName,
		desc:   "Sign-outs.",
		points: []point{{id: goSession.MetricSignOut}},
	},
	{
		name: OAuthFlowsName,
		desc: "OAuth authorization flows by stage.",
		points: []point{
			stage(goSession.MetricOAuthStarted, "started"),
			stage(goSession.MetricOAuthSuccess, "success"),
			stage(goSession.MetricOAuthFailure, "failure"),
		},
	},
	{
		name:   RedirectsName,
		desc:   "Redirect targets replaced by the fallback URL.",
		points: []point{{id: goSession.MetricRedirectRejected}},
	},
}

type observedCounter struct {
	instrument metric.Int64ObservableCounter
	points     []point
}

// Exporter publishes engine metrics as observable instruments. The refresh
// latency histogram becomes a cumulative bucket gauge keyed by "le" plus a
// sample count gauge.
type Exporter struct {
	source         metricsSource
	registration   metric.Registration
	counters       []observedCounter
	auditDropped   metric.Int64ObservableCounter
	refreshBuckets metric.Int64ObservableGauge
	refreshSamples metric.Int64ObservableGauge
	bounds         [refreshBucketsCount]attribute.Set
}

// NewExporter registers instruments on meter that read engine on every
// collection.
func NewExporter(meter metric.Meter, engine *goSession.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source, bounds: bucketBounds()}
	observables := make([]metric.Observable, 0, len(counterSpecs)+3)

	for _, spec := range counterSpecs {
		ins, err := meter.Int64ObservableCounter(spec.name, metric.WithDescription(spec.desc), metric.WithUnit("{event}"))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", spec.name, err)
		}
		e.counters = append(e.counters, observedCounter{instrument: ins, points: spec.points})
		observables = append(observables, ins)
	}

	var err error
	e.auditDropped, err = meter.Int64ObservableCounter(AuditDroppedName,
		metric.WithDescription("Audit events dropped under dispatcher backpressure."),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", AuditDroppedName, err)
	}
	e.refreshBuckets, err = meter.Int64ObservableGauge(RefreshBucketsName,
		metric.WithDescription("Cumulative session refresh latency samples at or below the le bound in seconds."),
		metric.WithUnit("{sample}"))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", RefreshBucketsName, err)
	}
	e.refreshSamples, err = meter.Int64ObservableGauge(RefreshSamplesName,
		metric.WithDescription("Session refresh latency samples."),
		metric.WithUnit("{sample}"))
	if err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", RefreshSamplesName, err)
	}
	observables = append(observables, e.auditDropped, e.refreshBuckets, e.refreshSamples)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		for _, p := range c.points {
			o.ObserveInt64(c.instrument, int64(snapshot.Counters[p.id]), metric.WithAttributeSet(p.attrs))
		}
	}

	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[goSession.MetricRefreshLatency]))
	for i, n := range cumulative {
		o.ObserveInt64(e.refreshBuckets, int64(n), metric.WithAttributeSet(e.bounds[i]))
	}
	o.ObserveInt64(e.refreshSamples, int64(cumulative[len(cumulative)-1]))

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func bucketBounds() [refreshBucketsCount]attribute.Set {
	var out [refreshBucketsCount]attribute.Set
	for i := range out {
		le := "+Inf"
		if i < len(internaldefs.HistogramUpperBounds) {
			le = strconv.FormatFloat(internaldefs.HistogramUpperBounds[i], 'g', -1, 64)
		}
		out[i] = attribute.NewSet(bucketBoundKey.String(le))
	}
	return out
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
