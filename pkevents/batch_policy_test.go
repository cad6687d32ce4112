package pkevents

import (
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"

	"github.com/pushkit/go-client-sdk/internal/sharedtest"
)

func TestBatchPolicyDefaults(t *testing.T) {
	p := NewBatchPolicy(sharedtest.NewMockKeyValueStore(), sharedtest.NewTestLoggers())
	assert.Equal(t, DefaultBatchLimits(), p.Current())
	assert.Equal(t, 512000, p.Current().MaxBatchSizeBytes)
	assert.Equal(t, 5*1024*1024, p.Current().MaxTotalStoreSizeBytes)
}

func TestBatchPolicyClampsOverrides(t *testing.T) {
	cases := []struct {
		name      string
		overrides Overrides
		check     func(BatchLimits)
	}{
		{"batch size above max", Overrides{MaxBatchSizeBytes: ldvalue.NewOptionalInt(1_000_000)},
			func(l BatchLimits) { assert.Equal(t, 512000, l.MaxBatchSizeBytes) }},
		{"batch size below min", Overrides{MaxBatchSizeBytes: ldvalue.NewOptionalInt(1)},
			func(l BatchLimits) { assert.Equal(t, MinBatchSizeBytes, l.MaxBatchSizeBytes) }},
		{"total size above max", Overrides{MaxTotalStoreSizeBytes: ldvalue.NewOptionalInt(100 * 1024 * 1024)},
			func(l BatchLimits) { assert.Equal(t, MaxTotalStoreSizeBytes, l.MaxTotalStoreSizeBytes) }},
		{"total size in range", Overrides{MaxTotalStoreSizeBytes: ldvalue.NewOptionalInt(20 * 1024)},
			func(l BatchLimits) { assert.Equal(t, 20*1024, l.MaxTotalStoreSizeBytes) }},
		{"negative wait", Overrides{MaxUploadWaitMillis: ldvalue.NewOptionalInt(-5)},
			func(l BatchLimits) { assert.Equal(t, MinUploadWait, l.MaxUploadWait) }},
		{"interval above max", Overrides{MinBatchIntervalMillis: ldvalue.NewOptionalInt(30 * 24 * 3600 * 1000)},
			func(l BatchLimits) { assert.Equal(t, MaxBatchInterval, l.MinBatchInterval) }},
		{"interval in range", Overrides{MinBatchIntervalMillis: ldvalue.NewOptionalInt(120000)},
			func(l BatchLimits) { assert.Equal(t, 2*time.Minute, l.MinBatchInterval) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := NewBatchPolicy(sharedtest.NewMockKeyValueStore(), sharedtest.NewTestLoggers())
			p.SetOverrides(c.overrides)
			c.check(p.Current())
		})
	}
}

func TestBatchPolicyOverridesArePersisted(t *testing.T) {
	kv := sharedtest.NewMockKeyValueStore()
	p1 := NewBatchPolicy(kv, sharedtest.NewTestLoggers())
	p1.SetOverrides(Overrides{MaxBatchSizeBytes: ldvalue.NewOptionalInt(1_000_000)})

	stored, found, _ := kv.Get(MaxBatchHeader)
	assert.True(t, found)
	assert.Equal(t, 1_000_000, stored.IntValue())

	p2 := NewBatchPolicy(kv, sharedtest.NewTestLoggers())
	assert.Equal(t, 512000, p2.Current().MaxBatchSizeBytes)
	assert.Equal(t, DefaultTotalStoreSizeBytes, p2.Current().MaxTotalStoreSizeBytes)
}

func TestBatchPolicyOverridesAreSticky(t *testing.T) {
	kv := sharedtest.NewMockKeyValueStore()
	p := NewBatchPolicy(kv, sharedtest.NewTestLoggers())
	p.SetOverrides(Overrides{MaxBatchSizeBytes: ldvalue.NewOptionalInt(20 * 1024)})
	p.SetOverrides(Overrides{MaxTotalStoreSizeBytes: ldvalue.NewOptionalInt(50 * 1024)})

	l := p.Current()
	assert.Equal(t, 20*1024, l.MaxBatchSizeBytes)
	assert.Equal(t, 50*1024, l.MaxTotalStoreSizeBytes)
}

func TestBatchPolicyUpdateFromHeaders(t *testing.T) {
	p := NewBatchPolicy(sharedtest.NewMockKeyValueStore(), sharedtest.NewTestLoggers())
	h := http.Header{}
	h.Set(MaxTotalHeader, "100")
	h.Set(MaxBatchHeader, "20")
	h.Set(MaxWaitHeader, "86400000")
	h.Set(MinBatchIntervalHeader, "not a number")
	p.UpdateFromHeaders(h)

	l := p.Current()
	assert.Equal(t, 100*1024, l.MaxTotalStoreSizeBytes)
	assert.Equal(t, 20*1024, l.MaxBatchSizeBytes)
	assert.Equal(t, 24*time.Hour, l.MaxUploadWait)
	assert.Equal(t, DefaultMinBatchInterval, l.MinBatchInterval)
}

func TestBatchPolicyHugeHeaderValuesClampToMax(t *testing.T) {
	kv := sharedtest.NewMockKeyValueStore()
	p := NewBatchPolicy(kv, sharedtest.NewTestLoggers())
	h := http.Header{}
	h.Set(MaxTotalHeader, "-9223372036854775807")
	h.Set(MaxBatchHeader, "9007199254740992")
	h.Set(MaxWaitHeader, "9223372036855")
	h.Set(MinBatchIntervalHeader, "9223372036854775807")
	p.UpdateFromHeaders(h)

	l := p.Current()
	assert.Equal(t, MinTotalStoreSizeBytes, l.MaxTotalStoreSizeBytes)
	assert.Equal(t, MaxBatchSizeBytes, l.MaxBatchSizeBytes)
	assert.Equal(t, MaxUploadWait, l.MaxUploadWait)
	assert.Equal(t, MaxBatchInterval, l.MinBatchInterval)

	reloaded := NewBatchPolicy(kv, sharedtest.NewTestLoggers())
	assert.Equal(t, l, reloaded.Current())
}

func TestBatchPolicyHugeOverridesClampToMax(t *testing.T) {
	p := NewBatchPolicy(nil, sharedtest.NewTestLoggers())
	p.SetOverrides(Overrides{
		MaxUploadWaitMillis:    ldvalue.NewOptionalInt(math.MaxInt),
		MinBatchIntervalMillis: ldvalue.NewOptionalInt(math.MinInt),
	})
	l := p.Current()
	assert.Equal(t, MaxUploadWait, l.MaxUploadWait)
	assert.Equal(t, MinBatchInterval, l.MinBatchInterval)
}

func TestBatchPolicyClear(t *testing.T) {
	kv := sharedtest.NewMockKeyValueStore()
	p := NewBatchPolicy(kv, sharedtest.NewTestLoggers())
	p.SetOverrides(Overrides{MaxBatchSizeBytes: ldvalue.NewOptionalInt(20 * 1024)})
	p.Clear()
	assert.Equal(t, DefaultBatchLimits(), p.Current())
	assert.Empty(t, kv.Snapshot())
}

func TestBatchPolicyStoreErrorsFallBackToDefaults(t *testing.T) {
	kv := sharedtest.NewMockKeyValueStore()
	kv.SetFakeError(errors.New("disk on fire"))
	mockLog := ldlogtest.NewMockLog()
	p := NewBatchPolicy(kv, mockLog.Loggers)
	assert.Equal(t, DefaultBatchLimits(), p.Current())
	mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Unable to read batch policy override.*disk on fire")
}

func TestBatchPolicyWithoutStore(t *testing.T) {
	p := NewBatchPolicy(nil, sharedtest.NewTestLoggers())
	p.SetOverrides(Overrides{MaxBatchSizeBytes: ldvalue.NewOptionalInt(20 * 1024)})
	assert.Equal(t, 20*1024, p.Current().MaxBatchSizeBytes)
}
