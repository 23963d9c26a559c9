package thresholds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/tracing"
)

var tracer = otel.Tracer("iot-energy-mgmt/thresholds")

var memoLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecoenergy",
	Subsystem: "thresholds",
	Name:      "memo_lookups_total",
	Help:      "Threshold resolutions by memo outcome.",
}, []string{"result"})

// Thresholds is an effective (min, max) pair. Either bound may be nil, both
// being nil means that no threshold is configured.
type Thresholds struct {
	Min *float64
	Max *float64
}

func (t Thresholds) IsSet() bool {
	return t.Min != nil || t.Max != nil
}

//go:generate moq -rm -out linkfinder_mock.go . LinkFinder

// LinkFinder looks up the link between a product and an alert rule and
// returns database.ErrNotFound when there is none.
type LinkFinder interface {
	FindProductAlertRule(ctx context.Context, productID, alertRuleID uint) (database.ProductAlertRule, error)
}

type Resolver interface {
	Resolve(ctx context.Context, product database.Product, rule database.AlertRule) (Thresholds, error)
	Invalidate(productID, alertRuleID uint)
	Flush()
}

// override is what the memo remembers about a (product, rule) pair: the
// override thresholds of its link, or that it has no usable override.
type override struct {
	found bool
	min   float64
	max   float64
}

// resolver bumps a generation counter on every invalidation. A lookup only
// stores its outcome if no invalidation of its key, and no flush, happened
// while it was in flight.
type resolver struct {
	links LinkFinder
	memo  *cache.Cache

	mu          sync.Mutex
	flushes     uint64
	generations map[string]uint64
}

// NewResolver returns a resolver that remembers the outcome of every link
// lookup for ttl. A ttl of zero or less keeps entries until they are
// invalidated or flushed.
func NewResolver(links LinkFinder, ttl time.Duration) Resolver {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, 2*ttl
	}

	return &resolver{
		links:       links,
		memo:        cache.New(expiration, cleanup),
		generations: map[string]uint64{},
	}
}

// Resolve returns the effective thresholds of rule for product. A link whose
// min and max are both set wins outright, anything else falls back to the
// defaults of the rule as a whole, never field by field.
func (r *resolver) Resolve(ctx context.Context, product database.Product, rule database.AlertRule) (Thresholds, error) {
	key := memoKey(product.ID, rule.ID)

	if cached, ok := r.memo.Get(key); ok {
		memoLookups.WithLabelValues("hit").Inc()
		return effective(cached.(override), rule), nil
	}

	memoLookups.WithLabelValues("miss").Inc()

	flushes, generation := r.generation(key)

	o, err := r.lookup(ctx, product.ID, rule.ID)
	if err != nil {
		return Thresholds{}, err
	}

	r.mu.Lock()
	if flushes == r.flushes && generation == r.generations[key] {
		r.memo.SetDefault(key, o)
	}
	r.mu.Unlock()

	return effective(o, rule), nil
}

func (r *resolver) lookup(ctx context.Context, productID, alertRuleID uint) (o override, err error) {
	ctx, span := tracer.Start(ctx, "find-product-alert-rule")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	link, err := r.links.FindProductAlertRule(ctx, productID, alertRuleID)
	if errors.Is(err, database.ErrNotFound) {
		return override{}, nil
	}
	if err != nil {
		return override{}, fmt.Errorf("failed to look up product alert rule: %w", err)
	}

	if !link.HasOverride() {
		return override{}, nil
	}

	return override{found: true, min: *link.MinThreshold, max: *link.MaxThreshold}, nil
}

func (r *resolver) generation(key string) (uint64, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes, r.generations[key]
}

func (r *resolver) Invalidate(productID, alertRuleID uint) {
	key := memoKey(productID, alertRuleID)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.generations[key]++
	r.memo.Delete(key)
}

func (r *resolver) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushes++
	r.generations = map[string]uint64{}
	r.memo.Flush()
}

func effective(o override, rule database.AlertRule) Thresholds {
	if o.found {
		return Thresholds{Min: float(o.min), Max: float(o.max)}
	}

	t := Thresholds{}
	if rule.DefaultMinThreshold != nil {
		t.Min = float(*rule.DefaultMinThreshold)
	}
	if rule.DefaultMaxThreshold != nil {
		t.Max = float(*rule.DefaultMaxThreshold)
	}
	return t
}

func memoKey(productID, alertRuleID uint) string {
	return fmt.Sprintf("%d:%d", productID, alertRuleID)
}

func float(v float64) *float64 {
	return &v
}
