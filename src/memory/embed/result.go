package embed

// Result is the outcome of resolving an embedding: either a vector with the
// origin that produced it, or the reason no vector is available.
type Result struct {
	Vector []float32
	Origin string
	Err    error
}

// Ok wraps a successful vector.
func Ok(vec []float32, origin string) Result {
	return Result{Vector: vec, Origin: origin}
}

// Err wraps a failure.
func Err(reason error) Result {
	return Result{Err: reason}
}

// OK reports whether the result carries a vector.
func (r Result) OK() bool {
	return r.Err == nil && len(r.Vector) > 0
}
