package core

// PageInfo describes one page of a paginated list.
type PageInfo struct {
	Number   int  `json:"page"`
	Size     int  `json:"page_size"`
	Count    int  `json:"count"`
	NumPages int  `json:"num_pages"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_previous"`

	start, end int
}

// Paginate computes the page `number` (1-based) of `count` items split in pages of `size`.
// Out of range page numbers are clamped to the first/last page.
func Paginate(count, number, size int) PageInfo {
	if size <= 0 {
		size = count
		if size == 0 {
			size = 1
		}
	}
	numPages := (count + size - 1) / size
	if numPages == 0 {
		numPages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}

	start := (number - 1) * size
	end := start + size
	if end > count {
		end = count
	}
	return PageInfo{
		Number:   number,
		Size:     size,
		Count:    count,
		NumPages: numPages,
		HasNext:  number < numPages,
		HasPrev:  number > 1,
		start:    start,
		end:      end,
	}
}

// Bounds returns the [start, end) slice bounds of the page.
func (p PageInfo) Bounds() (int, int) {
	return p.start, p.end
}
