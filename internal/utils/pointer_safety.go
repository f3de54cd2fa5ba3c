package utils

// Value dereferences v, or returns the zero value when v is nil. Handy for
// optional nested objects in decoded JSON.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}
