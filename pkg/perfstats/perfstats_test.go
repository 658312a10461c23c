package perfstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())

	a.AddSample(10 * time.Millisecond)
	a.AddSample(30 * time.Millisecond)
	a.AddSample(20 * time.Millisecond)
	require.EqualValues(t, 3, a.Samples)
	require.Equal(t, 20*time.Millisecond, a.Average())
	require.Equal(t, 30*time.Millisecond, a.Max)
	require.Equal(t, "3 samples, average 20ms, max 30ms", a.String())

	a.Reset()
	require.EqualValues(t, 0, a.Samples)
	require.Equal(t, time.Duration(0), a.Max)

	a.AddSince(time.Now().Add(-time.Second))
	require.True(t, a.Average() >= time.Second)
}
