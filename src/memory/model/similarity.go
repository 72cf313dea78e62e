package model

import "math"

// Similarity scores two vectors in [0, 1]. The shorter vector is treated as
// zero padded, the cosine is mapped through (cos+1)/2, and a zero norm or an
// empty vector scores 0.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		fa := float64(a[i])
		normA += fa * fa
		if i < len(b) {
			dot += fa * float64(b[i])
		}
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	score := (cos + 1) / 2
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// L2Normalize scales values to unit length. A zero vector is returned as zeros.
func L2Normalize(values []float64) []float32 {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	out := make([]float32, len(values))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range values {
		out[i] = float32(v / norm)
	}
	return out
}
