package pkevents

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// Batch policy bounds. Every live value is clamped into its range, whatever the server sends.
const (
	MinTotalStoreSizeBytes     = 10 * 1024
	MaxTotalStoreSizeBytes     = 5 * 1024 * 1024
	DefaultTotalStoreSizeBytes = MaxTotalStoreSizeBytes

	MinBatchSizeBytes     = 10 * 1024
	MaxBatchSizeBytes     = 500 * 1024
	DefaultBatchSizeBytes = MaxBatchSizeBytes

	MinUploadWait     = 60 * time.Second
	MaxUploadWait     = 14 * 24 * time.Hour
	DefaultUploadWait = 7 * 24 * time.Hour

	MinBatchInterval        = 60 * time.Second
	MaxBatchInterval        = 7 * 24 * time.Hour
	DefaultMinBatchInterval = MinBatchInterval
)

// Keys used both as response header names and as key-value store keys. Header values are in KiB
// for sizes and milliseconds for durations; stored values are in bytes and milliseconds.
const (
	MaxTotalHeader         = "X-PK-Max-Total"
	MaxBatchHeader         = "X-PK-Max-Batch"
	MaxWaitHeader          = "X-PK-Max-Wait"
	MinBatchIntervalHeader = "X-PK-Min-Batch-Interval"
)

// BatchLimits is a snapshot of the limits currently in effect.
type BatchLimits struct {
	MaxTotalStoreSizeBytes int
	MaxBatchSizeBytes      int
	MaxUploadWait          time.Duration
	MinBatchInterval       time.Duration
}

// Overrides holds server-supplied limit values. Undefined fields leave the current value alone.
// Sizes are in bytes, durations in milliseconds.
type Overrides struct {
	MaxTotalStoreSizeBytes ldvalue.OptionalInt
	MaxBatchSizeBytes      ldvalue.OptionalInt
	MaxUploadWaitMillis    ldvalue.OptionalInt
	MinBatchIntervalMillis ldvalue.OptionalInt
}

// BatchPolicy computes the current batch limits from hard-coded bounds and any overrides persisted
// in the key-value store. Overrides are sticky: they stay in effect until replaced or cleared.
type BatchPolicy struct {
	kv        subsystems.KeyValueStore
	overrides Overrides
	loaded    bool
	lock      sync.Mutex
	loggers   ldlog.Loggers
}

// NewBatchPolicy creates a BatchPolicy. The key-value store may be nil, in which case overrides are
// kept in memory only.
func NewBatchPolicy(kv subsystems.KeyValueStore, loggers ldlog.Loggers) *BatchPolicy {
	return &BatchPolicy{kv: kv, loggers: loggers}
}

// DefaultBatchLimits returns the limits that apply when there are no overrides.
func DefaultBatchLimits() BatchLimits {
	return BatchLimits{
		MaxTotalStoreSizeBytes: DefaultTotalStoreSizeBytes,
		MaxBatchSizeBytes:      DefaultBatchSizeBytes,
		MaxUploadWait:          DefaultUploadWait,
		MinBatchInterval:       DefaultMinBatchInterval,
	}
}

// Current returns the limits in effect, each clamped into its range.
func (p *BatchPolicy) Current() BatchLimits {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.loadIfNecessary()
	o := p.overrides
	return BatchLimits{
		MaxTotalStoreSizeBytes: clampInt(o.MaxTotalStoreSizeBytes.OrElse(DefaultTotalStoreSizeBytes),
			MinTotalStoreSizeBytes, MaxTotalStoreSizeBytes),
		MaxBatchSizeBytes: clampInt(o.MaxBatchSizeBytes.OrElse(DefaultBatchSizeBytes),
			MinBatchSizeBytes, MaxBatchSizeBytes),
		MaxUploadWait: clampDuration(millisOrElse(o.MaxUploadWaitMillis, DefaultUploadWait),
			MinUploadWait, MaxUploadWait),
		MinBatchInterval: clampDuration(millisOrElse(o.MinBatchIntervalMillis, DefaultMinBatchInterval),
			MinBatchInterval, MaxBatchInterval),
	}
}

// SetOverrides stores the defined fields of the given overrides, replacing previous values for
// those fields.
func (p *BatchPolicy) SetOverrides(overrides Overrides) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.loadIfNecessary()
	p.setOne(&p.overrides.MaxTotalStoreSizeBytes, overrides.MaxTotalStoreSizeBytes, MaxTotalHeader)
	p.setOne(&p.overrides.MaxBatchSizeBytes, overrides.MaxBatchSizeBytes, MaxBatchHeader)
	p.setOne(&p.overrides.MaxUploadWaitMillis, overrides.MaxUploadWaitMillis, MaxWaitHeader)
	p.setOne(&p.overrides.MinBatchIntervalMillis, overrides.MinBatchIntervalMillis, MinBatchIntervalHeader)
}

// UpdateFromHeaders reads overrides from the headers of a successful upload response. Headers that
// are missing or not integers are ignored.
func (p *BatchPolicy) UpdateFromHeaders(headers http.Header) {
	var o Overrides
	if kib, ok := intHeader(headers, MaxTotalHeader); ok {
		o.MaxTotalStoreSizeBytes = ldvalue.NewOptionalInt(kibToBytes(kib, MaxTotalStoreSizeBytes))
	}
	if kib, ok := intHeader(headers, MaxBatchHeader); ok {
		o.MaxBatchSizeBytes = ldvalue.NewOptionalInt(kibToBytes(kib, MaxBatchSizeBytes))
	}
	if ms, ok := intHeader(headers, MaxWaitHeader); ok {
		o.MaxUploadWaitMillis = ldvalue.NewOptionalInt(clampInt(ms, 0, int(MaxUploadWait/time.Millisecond)))
	}
	if ms, ok := intHeader(headers, MinBatchIntervalHeader); ok {
		o.MinBatchIntervalMillis = ldvalue.NewOptionalInt(clampInt(ms, 0, int(MaxBatchInterval/time.Millisecond)))
	}
	p.SetOverrides(o)
}

// Clear removes all overrides, so that the defaults apply again.
func (p *BatchPolicy) Clear() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.overrides = Overrides{}
	p.loaded = true
	if p.kv == nil {
		return
	}
	for _, key := range []string{MaxTotalHeader, MaxBatchHeader, MaxWaitHeader, MinBatchIntervalHeader} {
		if err := p.kv.Remove(key); err != nil {
			p.loggers.Warnf("Unable to remove batch policy override %s: %s", key, err)
		}
	}
}

func (p *BatchPolicy) setOne(field *ldvalue.OptionalInt, value ldvalue.OptionalInt, key string) {
	if !value.IsDefined() || value == *field {
		return
	}
	*field = value
	if p.kv == nil {
		return
	}
	if err := p.kv.Set(key, ldvalue.Int(value.IntValue())); err != nil {
		p.loggers.Warnf("Unable to persist batch policy override %s: %s", key, err)
	}
}

func (p *BatchPolicy) loadIfNecessary() {
	if p.loaded || p.kv == nil {
		p.loaded = true
		return
	}
	p.loaded = true
	p.overrides.MaxTotalStoreSizeBytes = p.loadOne(MaxTotalHeader)
	p.overrides.MaxBatchSizeBytes = p.loadOne(MaxBatchHeader)
	p.overrides.MaxUploadWaitMillis = p.loadOne(MaxWaitHeader)
	p.overrides.MinBatchIntervalMillis = p.loadOne(MinBatchIntervalHeader)
}

func (p *BatchPolicy) loadOne(key string) ldvalue.OptionalInt {
	value, found, err := p.kv.Get(key)
	if err != nil {
		p.loggers.Warnf("Unable to read batch policy override %s: %s", key, err)
		return ldvalue.OptionalInt{}
	}
	if !found || !value.IsNumber() {
		return ldvalue.OptionalInt{}
	}
	// Stored numbers are floats; converting one outside the int range is not well defined.
	f := math.Max(math.Min(value.Float64Value(), math.MaxInt32), math.MinInt32)
	return ldvalue.NewOptionalInt(int(f))
}

func intHeader(headers http.Header, name string) (int, bool) {
	s := headers.Get(name)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func millisOrElse(o ldvalue.OptionalInt, defaultValue time.Duration) time.Duration {
	if !o.IsDefined() {
		return defaultValue
	}
	ms := int64(o.IntValue())
	switch {
	case ms > math.MaxInt64/int64(time.Millisecond):
		return time.Duration(math.MaxInt64)
	case ms < math.MinInt64/int64(time.Millisecond):
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// kibToBytes converts a header value in KiB, saturating at hi so that the product cannot overflow.
func kibToBytes(kib, hi int) int {
	switch {
	case kib <= 0:
		return 0
	case kib > hi/1024:
		return hi
	}
	return kib * 1024
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
