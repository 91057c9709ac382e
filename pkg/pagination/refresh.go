package pagination

import "github.com/Sternrassler/pagekit/pkg/optional"

// ClosestPage returns the page holding the item at position in the
// concatenated items of pages. Positions before the start map to the first
// page, positions past the end to the last one.
func ClosestPage[T any](pages []Page[T], position int) (Page[T], bool) {
	if len(pages) == 0 {
		return Page[T]{}, false
	}
	if position < 0 {
		return pages[0], true
	}

	idx := 0
	offset := position
	for idx < len(pages)-1 && offset > len(pages[idx].Items)-1 {
		offset -= len(pages[idx].Items)
		idx++
	}
	return pages[idx], true
}

// RefreshKey computes the key that reloads the anchor page in place.
//
// A page's neighbor keys point at its neighbors, not at itself, hence the
// +1/-1 adjustment. PrevKey wins over NextKey when both are present. None
// means restart from the first page.
func RefreshKey[T any](pages []Page[T], anchor optional.Value[int]) optional.Value[int] {
	position, ok := anchor.Get()
	if !ok {
		return optional.None[int]()
	}

	page, ok := ClosestPage(pages, position)
	if !ok {
		return optional.None[int]()
	}

	if prev, ok := page.PrevKey.Get(); ok {
		return optional.Some(prev + 1)
	}
	if next, ok := page.NextKey.Get(); ok {
		return optional.Some(next - 1)
	}
	return optional.None[int]()
}
