package reference

// GenerateUnchecked exposes the capacity bypass to tests only.
func GenerateUnchecked(key uint64, opts ...Option) (string, error) {
	return generate(key, true, opts...)
}
