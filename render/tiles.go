package render

import (
	"image"

	mandel "github.com/marben/mandelzoom"
)

// slot places one lattice tile on the frame.
type slot struct {
	tx, ty int64
	dst    image.Rectangle // frame pixels covered by the tile
	src    image.Point     // lattice offset inside the tile of dst.Min
}

// splitLattice lists the lattice tiles covering a snapped viewport in
// row-major order. Tiles at the frame edges are clipped.
func splitLattice(v mandel.Viewport, size int) []slot {
	if size <= 0 {
		panic("tile size must be positive")
	}

	k, j := v.Lattice()
	s := int64(size)
	tx0, tx1 := floorDiv(k, s), floorDiv(k+int64(v.Width)-1, s)
	ty0, ty1 := floorDiv(j, s), floorDiv(j+int64(v.Height)-1, s)

	slots := make([]slot, 0, (tx1-tx0+1)*(ty1-ty0+1))
	for ty := ty0; ty <= ty1; ty++ {
		oy := int(ty*s - j)
		for tx := tx0; tx <= tx1; tx++ {
			ox := int(tx*s - k)
			dst := image.Rect(ox, oy, ox+size, oy+size).Intersect(image.Rect(0, 0, v.Width, v.Height))
			slots = append(slots, slot{
				tx:  tx,
				ty:  ty,
				dst: dst,
				src: dst.Min.Sub(image.Pt(ox, oy)),
			})
		}
	}
	return slots
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
