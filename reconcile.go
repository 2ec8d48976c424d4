package tremotesf

// reconcileNotifier receives the batched, half-open index ranges the List
// Reconciler (spec.md §4.3) emits while merging items against newItems.
// Ranges refer to positions in items immediately before the batch they
// describe, per spec.md's ordering guarantee.
type reconcileNotifier struct {
	AboutToRemove func(first, last int)
	Removed       func(first, last int)
	Changed       func(first, last int)
	AboutToAdd    func(count int)
	Added         func(count int)
}

func (n reconcileNotifier) removedBatch(first, last int) {
	if n.AboutToRemove != nil {
		n.AboutToRemove(first, last)
	}
	if n.Removed != nil {
		n.Removed(first, last)
	}
}

func (n reconcileNotifier) changedBatch(first, last int) {
	if n.Changed != nil {
		n.Changed(first, last)
	}
}

func (n reconcileNotifier) addedBatch(count int) {
	if n.AboutToAdd != nil {
		n.AboutToAdd(count)
	}
	if n.Added != nil {
		n.Added(count)
	}
}

// reconcile merges newItems into items in place: items with no match in
// newItems are removed, matched items are updated via updateItem (preserving
// their relative order), and unmatched new items are appended at the end.
// findNew supplies the identity predicate: given an item from items, it
// returns the matching index in newItems, or -1.
//
// This is the generic engine behind spec.md §4.3 (List Reconciler), shared by
// the torrent list, a torrent's peers, and its trackers. A torrent's files
// do not go through it (see updateFilesFromJSON).
func reconcile[T any, N any](
	items *[]T,
	newItems []N,
	findNew func(item T) int, // index into newItems, or -1
	updateItem func(item *T, newItem N) bool,
	newToItem func(newItem N) T,
	notify reconcileNotifier,
) {
	cur := *items
	matched := make([]bool, len(newItems))

	// Pass 1: remove unmatched, update matched, in a single left-to-right
	// scan so removed/changed batches stay contiguous and indices refer to
	// pre-batch positions, as spec.md requires.
	out := cur[:0]
	i := 0
	for i < len(cur) {
		// Find contiguous run of items with no match, for a single Removed batch.
		runStart := i
		for i < len(cur) {
			newIdx := findNew(cur[i])
			if newIdx < 0 {
				i++
				continue
			}
			break
		}
		if i > runStart {
			// Shift to positions in the list as it exists after every prior
			// batch in this pass: len(out) items have been kept/emitted so
			// far, so that's where this run now sits.
			notify.removedBatch(len(out), len(out)+(i-runStart))
			continue // re-scan from i without having advanced out/cur indices for this run
		}
		if i >= len(cur) {
			break
		}
		// cur[i] matched; walk the contiguous run of matched items, but
		// narrow each Changed batch to the sub-run of positions that
		// actually changed, flushing and resetting the sub-run whenever an
		// unchanged item is encountered — the same shape as the
		// removed-run splitting above, just keyed on updateItem's result
		// instead of findNew's.
		changedRunStart := -1
		for i < len(cur) {
			newIdx := findNew(cur[i])
			if newIdx < 0 {
				break
			}
			matched[newIdx] = true
			item := cur[i]
			changed := updateItem(&item, newItems[newIdx])
			out = append(out, item)
			if changed {
				if changedRunStart < 0 {
					changedRunStart = len(out) - 1
				}
			} else if changedRunStart >= 0 {
				notify.changedBatch(changedRunStart, len(out)-1)
				changedRunStart = -1
			}
			i++
		}
		if changedRunStart >= 0 {
			notify.changedBatch(changedRunStart, len(out))
		}
	}
	cur = out

	// Pass 2: append unmatched new items, in their newItems order.
	added := 0
	for idx, n := range newItems {
		if matched[idx] {
			continue
		}
		cur = append(cur, newToItem(n))
		added++
	}
	if added > 0 {
		notify.addedBatch(added)
	}

	*items = cur
}
