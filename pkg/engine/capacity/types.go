package capacity

import "github.com/DrSkyle/gridspawn/pkg/grid"

// Item is one unit instance to fit.
type Item struct {
	ID        string
	Size      grid.Size
	Rotatable bool
}

// fitsWithin reports whether the item fits a w x h box in some orientation.
func (i *Item) fitsWithin(b grid.Size) bool {
	s := i.Size
	if s.Width <= b.Width && s.Height <= b.Height {
		return true
	}
	return i.Rotatable && s.Height <= b.Width && s.Width <= b.Height
}

// Bin is the free space of one container.
// Capacity and Used are cell counts.
type Bin struct {
	ID       string
	Bounds   grid.Size
	Capacity int
	Items    []*Item
	Used     int
}

// AddItem places an item inside the bin.
func (b *Bin) AddItem(item *Item) bool {
	if !item.fitsWithin(b.Bounds) {
		return false
	}
	if b.Used+item.Size.Area() > b.Capacity {
		return false
	}
	b.Items = append(b.Items, item)
	b.Used += item.Size.Area()
	return true
}

// Waste is the capacity left unused.
func (b *Bin) Waste() int {
	return b.Capacity - b.Used
}

// Efficiency is the used share of the capacity.
func (b *Bin) Efficiency() float64 {
	if b.Capacity == 0 {
		return 0
	}
	return float64(b.Used) / float64(b.Capacity)
}
