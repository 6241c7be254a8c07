package recent

// List holds item ids, most recently viewed first, without duplicates.
type List []int64

// Prepend returns a new list with id at the front. An id that is already
// present moves to the front. When limit is positive the result is truncated
// to limit entries; the input is never modified.
func Prepend(list List, id int64, limit int) List {
	out := make(List, 0, len(list)+1)
	out = append(out, id)
	for _, existing := range list {
		if existing == id {
			continue
		}
		out = append(out, existing)
	}
	out = Dedupe(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Dedupe drops repeated ids, keeping the first occurrence.
func Dedupe(list List) List {
	seen := make(map[int64]struct{}, len(list))
	out := make(List, 0, len(list))
	for _, id := range list {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
