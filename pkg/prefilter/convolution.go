package prefilter

import (
	"github.com/df07/go-ibl-baker/pkg/core"
	"github.com/df07/go-ibl-baker/pkg/envmap"
)

// Prefilter integrates the environment over the GGX lobe of the given
// roughness around normal, using sampleCount Hammersley points. The view
// direction is assumed equal to the normal.
func Prefilter(normal core.Vec3, roughness float32, env envmap.Sampler, sampleCount uint32) core.Vec3 {
	return prefilterPoints(normal, roughness, env, core.HammersleySet(sampleCount))
}

// prefilterPoints is Prefilter with a precomputed sample set, so a whole
// face can share one set
func prefilterPoints(normal core.Vec3, roughness float32, env envmap.Sampler, points []core.Vec2) core.Vec3 {
	n := normal.Normalize()
	v := n

	var totalWeight float32
	var color core.Vec3
	for _, xi := range points {
		h := core.ImportanceSampleGGX(xi, n, roughness)
		l := core.Reflect(v, h).Normalize()

		nDotL := max(n.Dot(l), 0)
		if nDotL > 0 {
			color = color.Add(env.Sample(l).Multiply(nDotL))
			totalWeight += nDotL
		}
	}

	// No sample landed in the upper hemisphere
	if totalWeight == 0 {
		return core.Vec3{}
	}
	return color.Multiply(1 / totalWeight)
}
