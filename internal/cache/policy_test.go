package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var policyEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPolicy(t *testing.T, maxEntries int) Policy {
	t.Helper()
	policy, err := NewPolicy(maxEntries, time.Hour, FixedClock(policyEpoch))
	require.NoError(t, err)
	return policy
}

func TestNewPolicyRejectsNonPositiveBounds(t *testing.T) {
	_, err := NewPolicy(0, time.Hour, nil)
	require.ErrorIs(t, err, ErrInvalidBounds)

	_, err = NewPolicy(2, 0, nil)
	require.ErrorIs(t, err, ErrInvalidBounds)

	_, err = NewPolicy(2, -time.Second, nil)
	require.ErrorIs(t, err, ErrInvalidBounds)
}

func TestDecideEmptySnapshotInserts(t *testing.T) {
	policy := newTestPolicy(t, 2)

	d := policy.Decide("a", nil)

	require.Equal(t, KindInsert, d.Kind)
	require.Equal(t, ByKey("a"), d.Target)
	require.Equal(t, 1, d.Count)
	require.Equal(t, policyEpoch.Add(time.Hour), d.Expires)
	require.Nil(t, d.Victim)
}

func TestDecideBelowCapacityInsertsNewKey(t *testing.T) {
	policy := newTestPolicy(t, 2)
	snapshot := []Descriptor{{ID: "1", Key: "a", Count: 3, Expires: policyEpoch}}

	d := policy.Decide("b", snapshot)

	require.Equal(t, KindInsert, d.Kind)
	require.Equal(t, ByKey("b"), d.Target)
	require.Equal(t, 1, d.Count)
}

func TestDecideExistingKeyIncrementsCount(t *testing.T) {
	policy := newTestPolicy(t, 2)
	snapshot := []Descriptor{
		{ID: "1", Key: "a", Count: 1, Expires: policyEpoch},
		{ID: "2", Key: "b", Count: 4, Expires: policyEpoch.Add(time.Minute)},
	}

	d := policy.Decide("b", snapshot)

	require.Equal(t, KindUpdate, d.Kind)
	require.Equal(t, ByKey("b"), d.Target)
	require.Equal(t, 5, d.Count)
	require.Nil(t, d.Victim)
}

func TestDecideAtCapacityEvictsFront(t *testing.T) {
	policy := newTestPolicy(t, 2)
	snapshot := []Descriptor{
		{ID: "1", Key: "a", Count: 1, Expires: policyEpoch},
		{ID: "2", Key: "b", Count: 1, Expires: policyEpoch.Add(time.Second)},
	}

	d := policy.Decide("c", snapshot)

	require.Equal(t, KindEvict, d.Kind)
	require.Equal(t, ByID("1"), d.Target)
	require.True(t, d.Target.IsEviction())
	require.Equal(t, 1, d.Count)
	require.NotNil(t, d.Victim)
	require.Equal(t, "a", d.Victim.Key)
}

func TestDecideOverCapacityStillEvictsFront(t *testing.T) {
	policy := newTestPolicy(t, 1)
	snapshot := []Descriptor{
		{ID: "1", Key: "a", Count: 1, Expires: policyEpoch},
		{ID: "2", Key: "b", Count: 1, Expires: policyEpoch},
	}

	d := policy.Decide("z", snapshot)

	require.Equal(t, KindEvict, d.Kind)
	require.Equal(t, "1", d.Target.ID)
}

func TestDecideAtCapacityUpdatesLiveKeyInPlace(t *testing.T) {
	policy := newTestPolicy(t, 2)
	snapshot := []Descriptor{
		{ID: "1", Key: "a", Count: 1, Expires: policyEpoch},
		{ID: "2", Key: "b", Count: 2, Expires: policyEpoch.Add(time.Second)},
	}

	d := policy.Decide("b", snapshot)

	require.Equal(t, KindUpdate, d.Kind)
	require.Equal(t, ByKey("b"), d.Target)
	require.Equal(t, 3, d.Count)
}

func TestDecidePatchCarriesDecision(t *testing.T) {
	policy := newTestPolicy(t, 2)
	value := "v"

	d := policy.Decide("k", nil)
	patch := d.Patch("k", &value)

	require.Equal(t, "k", patch.Key)
	require.Equal(t, &value, patch.Value)
	require.Equal(t, d.Count, patch.Count)
	require.Equal(t, d.Expires, patch.Expires)

	touch := d.Patch("k", nil)
	require.Nil(t, touch.Value)
}

func TestSnapshotOrderingTieBreaks(t *testing.T) {
	created := policyEpoch.Add(-time.Hour)
	snapshot := []Descriptor{
		{ID: "e", Key: "late", Count: 1, Expires: policyEpoch.Add(2 * time.Second), CreatedAt: created},
		{ID: "d", Key: "busy", Count: 5, Expires: policyEpoch, CreatedAt: created},
		{ID: "c", Key: "newer", Count: 1, Expires: policyEpoch, CreatedAt: created.Add(time.Second)},
		{ID: "b", Key: "same-b", Count: 1, Expires: policyEpoch, CreatedAt: created},
		{ID: "a", Key: "same-a", Count: 1, Expires: policyEpoch, CreatedAt: created},
	}

	SortSnapshot(snapshot)

	keys := make([]string, 0, len(snapshot))
	for _, d := range snapshot {
		keys = append(keys, d.Key)
	}
	require.Equal(t, []string{"same-a", "same-b", "newer", "busy", "late"}, keys)
}

func TestEqualExpiryEvictsLowerCount(t *testing.T) {
	policy := newTestPolicy(t, 2)
	snapshot := []Descriptor{
		{ID: "2", Key: "b", Count: 5, Expires: policyEpoch},
		{ID: "1", Key: "a", Count: 1, Expires: policyEpoch},
	}
	SortSnapshot(snapshot)

	d := policy.Decide("c", snapshot)

	require.Equal(t, KindEvict, d.Kind)
	require.Equal(t, "a", d.Victim.Key)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "insert", KindInsert.String())
	require.Equal(t, "update", KindUpdate.String())
	require.Equal(t, "evict", KindEvict.String())
	require.Equal(t, "unknown", Kind(0).String())
}

func TestClockNowNormalises(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	clock := FixedClock(time.Date(2026, 3, 1, 7, 0, 0, 1500, loc))

	now := clock.Now()
	require.Equal(t, time.UTC, now.Location())
	require.Equal(t, 12, now.Hour())
	require.Equal(t, 1000, now.Nanosecond())

	var system Clock
	require.WithinDuration(t, time.Now(), system.Now(), time.Second)
}

func TestSystemClockDrivesPolicy(t *testing.T) {
	policy, err := NewPolicy(1, time.Minute, Now)
	require.NoError(t, err)

	d := policy.Decide("a", nil)
	require.WithinDuration(t, time.Now().Add(time.Minute), d.Expires, time.Second)
	require.Equal(t, time.UTC, Clock(Now).Now().Location())
}
