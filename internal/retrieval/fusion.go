package retrieval

import (
	"sort"

	"finrag/internal/repository"
)

type Strategy string

const (
	StrategyWeighted Strategy = "weighted"
	StrategyRRF      Strategy = "rrf"
)

// Fuse merges vector and lexical rankings into one list ordered by fused
// score, then newer document, then document id, then chunk index.
//
// Weighted: each list is min-max normalized to [0, 1] and combined as
// vw*v + lw*l, a chunk missing from a list contributing 0 for it.
// RRF: sum of 1/(k+rank) over the lists containing the chunk, rank from 1.
func Fuse(strategy Strategy, vector, lexical []repository.ScoredChunk, vw, lw float64, k int) []repository.ScoredChunk {
	merged := make(map[string]*repository.ScoredChunk, len(vector)+len(lexical))
	add := func(rows []repository.ScoredChunk, scores []float64) {
		for i := range rows {
			c, ok := merged[rows[i].ChunkID]
			if !ok {
				row := rows[i]
				row.Score = 0
				merged[row.ChunkID] = &row
				c = &row
			}
			c.Score += scores[i]
		}
	}

	if strategy == StrategyRRF {
		add(vector, reciprocalRanks(len(vector), k))
		add(lexical, reciprocalRanks(len(lexical), k))
	} else {
		add(vector, scaled(normalize(vector), vw))
		add(lexical, scaled(normalize(lexical), lw))
	}

	out := make([]repository.ScoredChunk, 0, len(merged))
	for _, c := range merged {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.DocumentCreatedAt.Equal(b.DocumentCreatedAt) {
			return a.DocumentCreatedAt.After(b.DocumentCreatedAt)
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	return out
}

// normalize min-max scales scores; a list whose scores are all equal maps to 1.
func normalize(rows []repository.ScoredChunk) []float64 {
	out := make([]float64, len(rows))
	if len(rows) == 0 {
		return out
	}
	lo, hi := rows[0].Score, rows[0].Score
	for _, r := range rows[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	for i, r := range rows {
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (r.Score - lo) / (hi - lo)
	}
	return out
}

func scaled(v []float64, w float64) []float64 {
	for i := range v {
		v[i] *= w
	}
	return v
}

func reciprocalRanks(n, k int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(k+i+1)
	}
	return out
}
