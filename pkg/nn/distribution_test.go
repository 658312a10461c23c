package nn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistributionOrder(t *testing.T) {
	d := Distribution{}
	d.Add("sad", 0.25)
	d.Add("happy", 0.5)
	d.Add("sad", 0.25)
	require.Equal(t, []string{"sad", "happy"}, d.Labels())
	v, ok := d.Get("sad")
	require.True(t, ok)
	require.Equal(t, 0.5, v)
	_, ok = d.Get("fear")
	require.False(t, ok)

	d.Scale(2)
	v, _ = d.Get("happy")
	require.Equal(t, 1.0, v)

	// Equal values: the smaller label wins
	label, ok := d.ArgMax()
	require.True(t, ok)
	require.Equal(t, "happy", label)

	_, ok = (&Distribution{}).ArgMax()
	require.False(t, ok)
}

func TestDistributionJSON(t *testing.T) {
	d := Distribution{}
	d.Set("surprise", 0.125)
	d.Set("angry", 0.5)
	d.Set("neutral", 0.375)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `{"surprise":0.125,"angry":0.5,"neutral":0.375}`, string(b))

	d2 := Distribution{}
	require.NoError(t, json.Unmarshal(b, &d2))
	require.Equal(t, d.Labels(), d2.Labels())
	require.Equal(t, d.Map(), d2.Map())

	b, err = json.Marshal(Distribution{})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(b))

	require.Error(t, json.Unmarshal([]byte(`{"happy":"very"}`), &d2))
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &d2))
}
