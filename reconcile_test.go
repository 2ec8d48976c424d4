package tremotesf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type reconcileItem struct {
	id      int
	payload string
}

func reconcileByID(items []reconcileItem) (
	findNew func(reconcileItem) int,
	updateItem func(*reconcileItem, reconcileItem) bool,
	newToItem func(reconcileItem) reconcileItem,
) {
	findNew = func(item reconcileItem) int {
		for i, n := range items {
			if n.id == item.id {
				return i
			}
		}
		return -1
	}
	updateItem = func(item *reconcileItem, n reconcileItem) bool {
		if item.payload == n.payload {
			return false
		}
		item.payload = n.payload
		return true
	}
	newToItem = func(n reconcileItem) reconcileItem { return n }
	return
}

func TestReconcileRemovesUnmatchedItems(t *testing.T) {
	items := []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}}
	newItems := []reconcileItem{{1, "a"}, {3, "c"}}

	var removed []IndexRange
	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{
		Removed: func(first, last int) { removed = append(removed, IndexRange{first, last}) },
	})

	require.Equal(t, []reconcileItem{{1, "a"}, {3, "c"}}, items)
	require.Equal(t, []IndexRange{{First: 1, Last: 2}}, removed)
}

func TestReconcileShiftsIndicesAfterRemovalWithinSamePass(t *testing.T) {
	// Two separate removed runs in one pass: positions 1 and 3 removed,
	// leaving ids 0 and 2. The second batch's reported indices must already
	// reflect the first batch's removal.
	items := []reconcileItem{{0, "a"}, {1, "x"}, {2, "b"}, {3, "y"}}
	newItems := []reconcileItem{{0, "a"}, {2, "b"}}

	var removed []IndexRange
	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{
		Removed: func(first, last int) { removed = append(removed, IndexRange{first, last}) },
	})

	require.Equal(t, []reconcileItem{{0, "a"}, {2, "b"}}, items)
	require.Equal(t, []IndexRange{{First: 1, Last: 2}, {First: 2, Last: 3}}, removed)
}

func TestReconcilePreservesOrderOfRetainedItems(t *testing.T) {
	items := []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}}
	newItems := []reconcileItem{{4, "d"}, {2, "b"}, {1, "a"}, {3, "c"}}

	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{})

	// Retained items keep their ORIGINAL relative order; reordering in
	// newItems does not reorder the mirror.
	require.Equal(t, []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}}, items)
}

func TestReconcileAppendsUnmatchedNewItemsInOrder(t *testing.T) {
	items := []reconcileItem{{1, "a"}}
	newItems := []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}}

	var added int
	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{
		Added: func(count int) { added = count },
	})

	require.Equal(t, []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}}, items)
	require.Equal(t, 2, added)
}

func TestReconcileEmitsChangedBatchOnlyWhenSomethingActuallyChanged(t *testing.T) {
	items := []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}}
	newItems := []reconcileItem{{1, "a"}, {2, "B"}, {3, "c"}}

	var changed []IndexRange
	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{
		Changed: func(first, last int) { changed = append(changed, IndexRange{first, last}) },
	})

	// Only index 1 ("b" -> "B") actually changed; the surrounding unchanged
	// matched items (0 and 2) must not be folded into the Changed range.
	require.Equal(t, []IndexRange{{First: 1, Last: 2}}, changed)
}

func TestReconcileNarrowsChangedRangeWithinAMatchedRunS4(t *testing.T) {
	// spec.md §8 scenario S4: mirror [1,2,3] vs. reply [2,3,4], only 3's
	// payload changed. Expected: removed [0,1) (torrent 1), changed [1,2)
	// in post-removal indices (torrent 3 only), added count 1.
	items := []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}}
	newItems := []reconcileItem{{2, "b"}, {3, "C"}, {4, "d"}}

	var removed, changed []IndexRange
	var added int
	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{
		Removed: func(first, last int) { removed = append(removed, IndexRange{first, last}) },
		Changed: func(first, last int) { changed = append(changed, IndexRange{first, last}) },
		Added:   func(count int) { added = count },
	})

	require.Equal(t, []IndexRange{{First: 0, Last: 1}}, removed)
	require.Equal(t, []IndexRange{{First: 1, Last: 2}}, changed)
	require.Equal(t, 1, added)
	require.Equal(t, []reconcileItem{{2, "b"}, {3, "C"}, {4, "d"}}, items)
}

func TestReconcileNoOpProducesNoNotifications(t *testing.T) {
	items := []reconcileItem{{1, "a"}, {2, "b"}}
	newItems := []reconcileItem{{1, "a"}, {2, "b"}}

	calls := 0
	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{
		Removed: func(int, int) { calls++ },
		Changed: func(int, int) { calls++ },
		Added:   func(int) { calls++ },
	})

	require.Equal(t, 0, calls)
	require.Equal(t, []reconcileItem{{1, "a"}, {2, "b"}}, items)
}

func TestReconcileIsStableUnderRepeatedApplication(t *testing.T) {
	// Idempotence: applying the same snapshot twice must be a no-op the
	// second time.
	items := []reconcileItem{{1, "a"}, {2, "b"}, {3, "c"}}
	newItems := []reconcileItem{{2, "b"}, {3, "c"}, {4, "d"}}

	findNew, updateItem, newToItem := reconcileByID(newItems)
	reconcile(&items, newItems, findNew, updateItem, newToItem, reconcileNotifier{})
	first := append([]reconcileItem(nil), items...)

	calls := 0
	findNew2, updateItem2, newToItem2 := reconcileByID(newItems)
	reconcile(&items, newItems, findNew2, updateItem2, newToItem2, reconcileNotifier{
		Removed: func(int, int) { calls++ },
		Changed: func(int, int) { calls++ },
		Added:   func(int) { calls++ },
	})

	require.Equal(t, first, items)
	require.Equal(t, 0, calls)
}
