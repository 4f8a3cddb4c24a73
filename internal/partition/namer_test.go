package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNamer(t *testing.T, ext, spec string) *Namer {
	t.Helper()
	n, err := New(ext, spec)
	require.NoError(t, err)
	return n
}

func TestKeys_SundayEmitsDailyAndWeekly(t *testing.T) {
	n := mustNamer(t, "tar.gz", "0 0 * * 0")

	keys := n.Keys(time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "daily/2024/06/09/20240609000000.tar.gz", keys.Daily.String())
	require.NotNil(t, keys.Weekly)
	assert.Equal(t, "weekly/2024/06/09/20240609000000.tar.gz", keys.Weekly.String())
	assert.Len(t, keys.All(), 2)
}

func TestKeys_MondayEmitsDailyOnly(t *testing.T) {
	n := mustNamer(t, "tar.gz", "0 0 * * 0")

	keys := n.Keys(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "daily/2024/06/10/20240610000000.tar.gz", keys.Daily.String())
	assert.Nil(t, keys.Weekly)
	assert.Len(t, keys.All(), 1)
}

func TestKeys_WeeklySharesDailySuffix(t *testing.T) {
	n := mustNamer(t, "zip", "@weekly")
	start := time.Date(2024, 1, 1, 13, 7, 42, 0, time.UTC)

	weeklies := 0
	for i := 0; i < 14; i++ {
		keys := n.Keys(start.AddDate(0, 0, i))
		if keys.Weekly == nil {
			continue
		}
		weeklies++
		d, w := keys.Daily, *keys.Weekly
		assert.Equal(t, Weekly, w.Cadence)
		d.Cadence = Weekly
		assert.Equal(t, d, w)
	}
	assert.Equal(t, 2, weeklies, "one weekly key per 7-day cycle")
}

func TestKeys_UsesUTC(t *testing.T) {
	n := mustNamer(t, "tar.gz", "0 0 * * 0")
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// 01:30 Monday in Paris is still Sunday in UTC.
	keys := n.Keys(time.Date(2024, 6, 10, 1, 30, 5, 999, paris))

	assert.Equal(t, "daily/2024/06/09/20240609233005.tar.gz", keys.Daily.String())
	assert.NotNil(t, keys.Weekly)
}

func TestKeys_Deterministic(t *testing.T) {
	n := mustNamer(t, ".tar.gz", "")
	at := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, n.Keys(at), n.Keys(at))
	assert.Equal(t, "tar.gz", n.Extension())
}

func TestNew_WeekdayFromSchedule(t *testing.T) {
	cases := map[string]time.Weekday{
		"0 0 * * 0":   time.Sunday,
		"30 2 * * 3":  time.Wednesday,
		"0 0 * * SAT": time.Saturday,
		"@weekly":     time.Sunday,
	}
	for spec, want := range cases {
		t.Run(spec, func(t *testing.T) {
			assert.Equal(t, want, mustNamer(t, "tar.gz", spec).Weekday())
		})
	}
}

func TestNew_RejectsInvalidSchedules(t *testing.T) {
	for _, spec := range []string{
		"0 0 * * *",     // every day
		"0 0 * * 1,4",   // twice a week
		"0 0 1 * 0",     // restricted day-of-month
		"0 0 * 6 0",     // restricted month
		"@every 168h",   // not calendar based
		"not a cron",    // unparsable
		"0 0 0 * * 0 1", // too many fields
		"CRON_TZ=Asia/Tokyo 0 0 * * 1",
		"TZ=America/New_York @weekly",
	} {
		t.Run(spec, func(t *testing.T) {
			_, err := New("tar.gz", spec)
			assert.Error(t, err)
		})
	}
}

func TestNew_AcceptsExplicitUTC(t *testing.T) {
	n, err := New("tar.gz", "CRON_TZ=UTC 0 0 * * 1")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, n.Weekday())
}

func TestNew_RejectsBadExtension(t *testing.T) {
	_, err := New("", "@weekly")
	assert.Error(t, err)
	_, err = New("a/b", "@weekly")
	assert.Error(t, err)
}

func TestNextWeekly(t *testing.T) {
	n := mustNamer(t, "tar.gz", "0 0 * * 0")
	next := n.NextWeekly(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), next)
}

func TestParseKey_RoundTrip(t *testing.T) {
	n := mustNamer(t, "tar.gz", "0 0 * * 0")
	at := time.Date(2024, 6, 9, 4, 5, 6, 0, time.UTC)
	for _, k := range n.Keys(at).All() {
		got, err := ParseKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
		ts, err := got.Time()
		require.NoError(t, err)
		assert.True(t, at.Equal(ts))
	}
}

func TestParseKey_Errors(t *testing.T) {
	for _, s := range []string{
		"daily/2024/06/09",
		"monthly/2024/06/09/20240609000000.tar.gz",
		"daily/2024/06/09/20240609000000",
		"daily/2024/06/10/20240609000000.tar.gz",
		"daily/2024/06/09/notatimestamp.tar.gz",
	} {
		_, err := ParseKey(s)
		assert.Error(t, err, s)
	}
}

func TestCadencePrefix(t *testing.T) {
	assert.Equal(t, "daily/", Daily.Prefix())
	assert.Equal(t, "weekly/", Weekly.Prefix())
	c, err := ParseCadence(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, Weekly, c)
}
