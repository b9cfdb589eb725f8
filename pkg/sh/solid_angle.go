package sh

import "math"

// SolidAngle returns the solid angle subtended by texel (x, y) of a cubemap
// face of the given size. It sums the projected area element at the four
// texel corners. See
// https://www.rorydriscoll.com/2012/01/15/cubemap-texel-solid-angle/
func SolidAngle(x, y, size int) float64 {
	fs := float64(size)
	// [-1, 1] coordinates of the texel center
	u := 2*(float64(x)+0.5)/fs - 1
	v := 2*(float64(y)+0.5)/fs - 1

	invSize := 1 / fs
	x0 := u - invSize
	y0 := v - invSize
	x1 := u + invSize
	y1 := v + invSize

	return areaElement(x0, y0) - areaElement(x0, y1) - areaElement(x1, y0) + areaElement(x1, y1)
}

func areaElement(x, y float64) float64 {
	return math.Atan2(x*y, math.Sqrt(x*x+y*y+1))
}
