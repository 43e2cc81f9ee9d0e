package query

// ArrayStrategy defines how Merge combines two slices found under the same
// key.
type ArrayStrategy int

const (
	// ReplaceArrays keeps the slice of the source with the highest
	// precedence.
	ReplaceArrays ArrayStrategy = iota
	// ConcatArrays appends the slice of the higher precedence source to the
	// lower one.
	ConcatArrays
)

// Merge deep merges sources into a new map. Sources are listed by increasing
// precedence: on key collision the value of the last source wins, unless both
// values are maps, in which case they are merged recursively, or both are
// slices, in which case they are combined according to strategy. Nil sources
// are skipped and none of the sources is modified.
func Merge(strategy ArrayStrategy, sources ...map[string]interface{}) map[string]interface{} {
	dst := map[string]interface{}{}
	for _, src := range sources {
		mergeInto(dst, src, strategy)
	}
	return dst
}

func mergeInto(dst, src map[string]interface{}, strategy ArrayStrategy) {
	for k, v := range src {
		cur, found := dst[k]
		if !found {
			dst[k] = copyValue(v)
			continue
		}
		switch v := v.(type) {
		case map[string]interface{}:
			if m, ok := cur.(map[string]interface{}); ok {
				mergeInto(m, v, strategy)
				continue
			}
		case []interface{}:
			if s, ok := cur.([]interface{}); ok && strategy == ConcatArrays {
				out := make([]interface{}, 0, len(s)+len(v))
				out = append(out, s...)
				for _, item := range v {
					out = append(out, copyValue(item))
				}
				dst[k] = out
				continue
			}
		}
		dst[k] = copyValue(v)
	}
}

// copyValue deep copies maps and slices so merged results never share
// mutable state with their sources.
func copyValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, item := range v {
			m[k] = copyValue(item)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(v))
		for i, item := range v {
			s[i] = copyValue(item)
		}
		return s
	default:
		return v
	}
}
