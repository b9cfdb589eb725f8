package prefilter

import (
	"fmt"
	"time"

	"github.com/df07/go-ibl-baker/pkg/core"
	"github.com/df07/go-ibl-baker/pkg/envmap"
)

// MipLevel is one level of a prefiltered cubemap
type MipLevel struct {
	Roughness float32
	Faces     core.FaceSet
}

// Size returns the face edge length of the level
func (ml MipLevel) Size() int {
	return ml.Faces.Size()
}

// MipChain is a prefiltered cubemap, level 0 first (largest, sharpest)
type MipChain struct {
	Levels []MipLevel
	Stats  BakeStats
}

// Len returns the number of mip levels
func (mc *MipChain) Len() int {
	return len(mc.Levels)
}

// FaceSets returns the faces of every level, level 0 first
func (mc *MipChain) FaceSets() []core.FaceSet {
	sets := make([]core.FaceSet, len(mc.Levels))
	for i, level := range mc.Levels {
		sets[i] = level.Faces
	}
	return sets
}

// Options controls a bake
type Options struct {
	Workers  int              // Worker goroutines, <= 0 means runtime.NumCPU()
	Progress func(LevelStats) // Called after each level, from the calling goroutine
}

// Option configures a bake
type Option func(*Options)

// WithWorkers sets the number of worker goroutines
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithProgress registers a callback invoked once per finished level
func WithProgress(fn func(LevelStats)) Option {
	return func(o *Options) { o.Progress = fn }
}

// MipRoughness returns the roughness for mip level i of a chain with
// mipCount levels: i / (mipCount+1). The last level stays below 1.
func MipRoughness(level, mipCount int) float32 {
	roughnessGap := 1 / float32(mipCount+1)
	return roughnessGap * float32(level)
}

// Bake prefilters the environment into a full cubemap mip chain. faceSize
// is the edge of level 0 and must be a power of two; each further level
// halves it down to 1x1. Every level is computed from the source
// environment, never from another level.
func Bake(env envmap.Sampler, faceSize int, sampleCount uint32, opts ...Option) (*MipChain, error) {
	if !core.IsPowerOfTwo(faceSize) {
		return nil, fmt.Errorf("face size %d: %w", faceSize, core.ErrFaceSizeNotPowerOfTwo)
	}

	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	mipCount := core.MipCount(faceSize)
	points := core.HammersleySet(sampleCount)

	pool := NewWorkerPool(options.Workers, core.FaceCount*faceSize)
	pool.Start()
	defer pool.Stop()

	chain := &MipChain{Levels: make([]MipLevel, 0, mipCount)}
	size := faceSize
	for level := 0; level < mipCount; level++ {
		roughness := MipRoughness(level, mipCount)
		start := time.Now()

		faces, texels, err := rasterizeLevel(pool, size, func(dir core.Vec3) core.Vec3 {
			return prefilterPoints(dir, roughness, env, points)
		})
		if err != nil {
			return nil, fmt.Errorf("mip %d (roughness %.3f): %w", level, roughness, err)
		}

		stats := LevelStats{
			Level:       level,
			FaceSize:    size,
			Roughness:   roughness,
			Texels:      texels,
			Samples:     int64(texels) * int64(sampleCount),
			Duration:    time.Since(start),
			TotalLevels: mipCount,
		}
		chain.Stats.add(stats)
		if options.Progress != nil {
			options.Progress(stats)
		}

		chain.Levels = append(chain.Levels, MipLevel{Roughness: roughness, Faces: faces})
		size /= 2
	}

	return chain, nil
}

// RasterizeLevel fills all six faces of one cubemap level by evaluating
// kernel at every texel center direction
func RasterizeLevel(size int, kernel TexelKernel, opts ...Option) (core.FaceSet, error) {
	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	pool := NewWorkerPool(options.Workers, core.FaceCount*size)
	pool.Start()
	defer pool.Stop()

	faces, _, err := rasterizeLevel(pool, size, kernel)
	return faces, err
}

func rasterizeLevel(pool *WorkerPool, size int, kernel TexelKernel) (core.FaceSet, int, error) {
	job := &levelJob{
		faces:  core.NewFaceSet(size),
		size:   size,
		kernel: kernel,
	}
	texels, err := pool.rasterize(job)
	if err != nil {
		return core.FaceSet{}, 0, err
	}
	return job.faces, texels, nil
}

// EquirectToCubemap resamples the environment onto six faces without any
// filtering beyond the sampler's own (bilinear for an EquirectSampler)
func EquirectToCubemap(env envmap.Sampler, faceSize int, opts ...Option) (core.FaceSet, error) {
	if faceSize <= 0 {
		return core.FaceSet{}, fmt.Errorf("face size %d: %w", faceSize, core.ErrEmptyImage)
	}
	return RasterizeLevel(faceSize, env.Sample, opts...)
}
