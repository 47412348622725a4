package embedding

import "math"

// Truncate implements Matryoshka Representation Learning truncation:
// take the first dim components of vec and L2-renormalize so the
// truncated view is itself a unit vector, suitable for cosine search at a
// reduced width. If dim >= len(vec), vec is returned renormalized but
// otherwise unchanged.
func Truncate(vec []float32, dim int) []float32 {
	if dim <= 0 || dim > len(vec) {
		dim = len(vec)
	}
	out := make([]float32, dim)
	copy(out, vec[:dim])

	var sumSquares float64
	for _, v := range out {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return out
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range out {
		out[i] /= norm
	}
	return out
}

// TruncateAll computes a Truncate view for every dimension in dims,
// keyed by dimension, for persistence as Embedding.TruncatedViews.
func TruncateAll(vec []float32, dims []int) map[int][]float32 {
	views := make(map[int][]float32, len(dims))
	for _, d := range dims {
		views[d] = Truncate(vec, d)
	}
	return views
}
