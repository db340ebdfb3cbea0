package drug

// AddToList appends rxcui unless it is already present. It returns a new
// slice and whether the entry was added.
func AddToList(list []string, rxcui string) ([]string, bool) {
	for _, r := range list {
		if r == rxcui {
			return list, false
		}
	}
	out := make([]string, len(list), len(list)+1)
	copy(out, list)
	return append(out, rxcui), true
}

// RemoveFromList drops rxcui and keeps the remaining order. Removing an
// absent entry returns the list unchanged.
func RemoveFromList(list []string, rxcui string) ([]string, bool) {
	out := make([]string, 0, len(list))
	removed := false
	for _, r := range list {
		if r == rxcui {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if !removed {
		return list, false
	}
	return out, true
}
