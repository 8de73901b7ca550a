// Package shapes builds the offset-point lists entities use as their shape.
// These are out-of-core helpers: the simulator only ever consumes a shape's
// axis-aligned bounding box (see package geometry).
package shapes

import "math"

// Rectangle returns the four corners of a rectangle of the given side
// lengths, centered on the shape origin, rounded to roundTo decimal places.
func Rectangle(xLen, yLen float64, roundTo int) [][2]float64 {
	hx, hy := xLen/2, yLen/2
	return [][2]float64{
		{round(hx, roundTo), round(hy, roundTo)},
		{round(-hx, roundTo), round(hy, roundTo)},
		{round(-hx, roundTo), round(-hy, roundTo)},
		{round(hx, roundTo), round(-hy, roundTo)},
	}
}

// Circle returns `points` coordinates evenly spaced around a circle of the
// given radius, centered on the shape origin, rounded to roundTo decimal
// places.
func Circle(radius float64, points int, roundTo int) [][2]float64 {
	if points <= 0 {
		return nil
	}
	out := make([][2]float64, points)
	for i := 0; i < points; i++ {
		theta := 2 * math.Pi / float64(points) * float64(i)
		out[i] = [2]float64{
			round(radius*math.Cos(theta), roundTo),
			round(radius*math.Sin(theta), roundTo),
		}
	}
	return out
}

func round(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}
