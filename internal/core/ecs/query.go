package ecs

// Each2 visits entities holding both A and B, in the dense order of A.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	for i := range sa.dense {
		id := sa.ids[i]
		if j, ok := sb.index[id]; ok {
			fn(id, &sa.dense[i], &sb.dense[j])
		}
	}
}

// Each3 visits entities holding A, B and C, in the dense order of A.
// Callers put the most selective store first.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	for i := range sa.dense {
		id := sa.ids[i]
		j, ok := sb.index[id]
		if !ok {
			continue
		}
		k, ok := sc.index[id]
		if !ok {
			continue
		}
		fn(id, &sa.dense[i], &sb.dense[j], &sc.dense[k])
	}
}
