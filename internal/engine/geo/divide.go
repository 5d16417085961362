package geo

import "github.com/rsavell/place_scout/internal/model"

// Divide splits a bounding box into an n×n grid of sub-boxes covering it
// exactly, ordered row-major from the southwest corner (all columns of the
// southernmost row first). Sub-box edges are linear interpolations, so
// neighbours share edges with no gaps. n below 2 returns the box unchanged.
func Divide(box model.BoundingBox, n int) []model.BoundingBox {
	if n <= 1 {
		return []model.BoundingBox{box}
	}

	b := box.Bound()
	latStep := (b.Max.Lat() - b.Min.Lat()) / float64(n)
	lngStep := (b.Max.Lon() - b.Min.Lon()) / float64(n)

	boxes := make([]model.BoundingBox, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			boxes = append(boxes, model.BoundingBox{
				Southwest: model.LatLng{
					Lat: b.Min.Lat() + float64(i)*latStep,
					Lng: b.Min.Lon() + float64(j)*lngStep,
				},
				Northeast: model.LatLng{
					Lat: b.Min.Lat() + float64(i+1)*latStep,
					Lng: b.Min.Lon() + float64(j+1)*lngStep,
				},
			})
		}
	}
	return boxes
}
