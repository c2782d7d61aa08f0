package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func TestSeedMemoryStore(t *testing.T) {
	ctx := context.Background()
	rt, err := app.Build(ctx, config.Defaults(), "test")
	require.NoError(t, err)
	defer rt.Close()

	// 2025-03-10 is a Monday, so the first five days are workdays.
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sum, err := New(rt.Providers, rt.Service).Run(ctx, Options{
		Providers:      3,
		Days:           7,
		BookingsPerDay: 4,
		From:           from,
		Seed:           42,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Providers)
	assert.Positive(t, sum.Bookings)

	ids, err := rt.Providers.ListProviderIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	total := 0
	for _, id := range ids {
		bookings, err := rt.Memory.ListBookings(ctx, id)
		require.NoError(t, err)
		total += len(bookings)

		for i, a := range bookings {
			assert.NotEqual(t, time.Saturday, a.Date.Weekday())
			assert.NotEqual(t, time.Sunday, a.Date.Weekday())
			for _, b := range bookings[i+1:] {
				if a.Date.Equal(b.Date) {
					assert.False(t, a.Interval().Overlaps(b.Interval()),
						"%s %s overlaps %s", timeutil.FormatDate(a.Date), a.Interval(), b.Interval())
				}
			}
		}
	}
	assert.Equal(t, sum.Bookings, total)
}
