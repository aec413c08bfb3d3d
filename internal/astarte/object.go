package astarte

// ObjectEntry pairs a path segment with the value published under it inside
// an object-aggregated interface's publish.
type ObjectEntry struct {
	Segment string
	Value   AstarteData
}

// Object is an unordered set of entries identified by segment; no two
// entries may share a segment.
type Object struct {
	Entries []ObjectEntry
}

// Lookup returns the value for segment, or false if absent.
func (o Object) Lookup(segment string) (AstarteData, bool) {
	for _, e := range o.Entries {
		if e.Segment == segment {
			return e.Value, true
		}
	}
	return AstarteData{}, false
}

// EqualObject implements multiset equality over (segment, value) pairs: the
// same segments, in any order, carrying equal values, with no duplicates on
// either side.
func EqualObject(a, b Object) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	matched := make([]bool, len(b.Entries))
	for _, ae := range a.Entries {
		found := false
		for i, be := range b.Entries {
			if matched[i] || be.Segment != ae.Segment {
				continue
			}
			if Equal(ae.Value, be.Value) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
