package utils

// NilIfEmpty returns nil for the zero value so optional columns store NULL.
func NilIfEmpty[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
