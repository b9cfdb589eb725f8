package prefilter

import "time"

// LevelStats contains statistics about one baked mip level
type LevelStats struct {
	Level       int           // Mip index, 0 is the largest face
	FaceSize    int           // Edge length of each face at this level
	Roughness   float32       // GGX roughness the level was filtered with
	Texels      int           // Texels written across all six faces
	Samples     int64         // Environment lookups requested (texels * samples per texel)
	Duration    time.Duration // Wall time spent on the level
	TotalLevels int           // Number of levels in the chain
}

// BakeStats aggregates statistics over a whole mip chain
type BakeStats struct {
	Levels   []LevelStats
	Texels   int
	Samples  int64
	Duration time.Duration
}

// add folds a finished level into the totals
func (bs *BakeStats) add(ls LevelStats) {
	bs.Levels = append(bs.Levels, ls)
	bs.Texels += ls.Texels
	bs.Samples += ls.Samples
	bs.Duration += ls.Duration
}
