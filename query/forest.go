package query

import "github.com/eyros-db/eyros/point"

// ForestStream round-robin interleaves one Stream per tree in a forest:
// each pull advances to the next live sub-stream, and a sub-stream that
// ends is dropped from the rotation. The merged stream ends once every
// sub-stream has ended.
type ForestStream[X point.Number, V any] struct {
	streams []*Stream[X, V]
	next    int
}

// NewForestStream builds a round-robin merge over streams. Order across
// sub-streams is unspecified: round-robin is a fairness policy, not an
// ordering guarantee.
func NewForestStream[X point.Number, V any](streams []*Stream[X, V]) *ForestStream[X, V] {
	return &ForestStream[X, V]{streams: streams}
}

// Next pulls the next hit from whichever sub-stream is up in the
// rotation, skipping and discarding sub-streams as they exhaust.
func (f *ForestStream[X, V]) Next() (Hit[X, V], bool, error) {
	for len(f.streams) > 0 {
		idx := f.next % len(f.streams)
		hit, ok, err := f.streams[idx].Next()
		if err != nil {
			return Hit[X, V]{}, false, err
		}
		if !ok {
			f.streams = append(f.streams[:idx], f.streams[idx+1:]...)
			if idx < f.next {
				f.next--
			}
			continue
		}
		f.next = idx + 1
		return hit, true, nil
	}
	return Hit[X, V]{}, false, nil
}
