package nn

// Float64 returns a copy of v in which every float32 has been widened to float64.
// It descends into maps and slices, so that a whole classifier payload can be normalized at once.
// Typed float32 containers become their generic equivalents ([]any, map[string]any).
// All other values are returned unchanged.
func Float64(v any) any {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case Analysis:
		return Analysis(float64Map(t))
	case map[string]any:
		return float64Map(t)
	case []any:
		r := make([]any, len(t))
		for i, e := range t {
			r[i] = Float64(e)
		}
		return r
	case map[string]float32:
		r := make(map[string]any, len(t))
		for k, e := range t {
			r[k] = float64(e)
		}
		return r
	case []float32:
		r := make([]any, len(t))
		for i, e := range t {
			r[i] = float64(e)
		}
		return r
	case map[string]float64:
		r := make(map[string]any, len(t))
		for k, e := range t {
			r[k] = e
		}
		return r
	}
	return v
}

func float64Map(m map[string]any) map[string]any {
	r := make(map[string]any, len(m))
	for k, e := range m {
		r[k] = Float64(e)
	}
	return r
}

// NormalizeAnalysis is Float64, specialized for a classifier payload
func NormalizeAnalysis(a Analysis) Analysis {
	if a == nil {
		return nil
	}
	return Float64(a).(Analysis)
}

// toFloat accepts any of the numeric types that the JSON and msgpack decoders produce
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}
