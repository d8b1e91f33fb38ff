package recommend

import "math"

// Neutral defaults used when a signal is absent: missing information is not
// penalized to zero.
const (
	neutralTagSimilarity  = 0.3
	weakArtistAffinity    = 0.2
	neutralPopularity     = 0.5
	tagSimilarityBoost    = 2.0
	popularityZSpread     = 6.0
	popularityZOffset     = 3.0
	popularityPercentBase = 100.0
)

// score is the weighted sum of three normalized signals.
func (e *Engine) score(c candidate, genreWeights map[string]float64, artistIDs map[string]struct{}, popularities []int) float64 {
	tagSimilarity := neutralTagSimilarity
	if len(genreWeights) > 0 && len(c.Genres) > 0 {
		var matched float64
		for _, g := range c.Genres {
			matched += genreWeights[g]
		}
		tagSimilarity = clamp01(matched * tagSimilarityBoost)
	}

	// Catalog co-occurrence via the aggregation strategies still carries weak
	// positive signal even without a direct artist match.
	artistAffinity := 0.0
	if c.ArtistID != "" {
		if _, ok := artistIDs[c.ArtistID]; ok {
			artistAffinity = 1.0
		} else {
			artistAffinity = weakArtistAffinity
		}
	}

	popularityZ := popularitySignal(c.Popularity, popularities)

	return e.cfg.TagSimilarityWeight*tagSimilarity +
		e.cfg.ArtistAffinityWeight*artistAffinity +
		e.cfg.PopularityWeight*popularityZ
}

// popularitySignal rescales the candidate's popularity z-score against the
// pool distribution into [0,1]. A zero-variance pool yields the neutral 0.5;
// an empty pool falls back to popularity/100.
func popularitySignal(popularity int, pool []int) float64 {
	if len(pool) == 0 {
		return clamp01(float64(popularity) / popularityPercentBase)
	}

	var sum float64
	for _, p := range pool {
		sum += float64(p)
	}
	mean := sum / float64(len(pool))

	var variance float64
	for _, p := range pool {
		d := float64(p) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(pool)))
	if std == 0 {
		return neutralPopularity
	}

	z := (float64(popularity) - mean) / std
	return clamp01((z + popularityZOffset) / popularityZSpread)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
