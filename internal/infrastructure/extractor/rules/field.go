package rules

// Field is the result of one extraction rule: either a found value or missing.
type Field[T any] struct {
	value T
	ok    bool
}

func Found[T any](v T) Field[T] {
	return Field[T]{value: v, ok: true}
}

func Missing[T any]() Field[T] {
	return Field[T]{}
}

func (f Field[T]) Get() (T, bool) {
	return f.value, f.ok
}

func (f Field[T]) Found() bool {
	return f.ok
}

// Or returns f when found, otherwise the fallback.
func (f Field[T]) Or(fallback Field[T]) Field[T] {
	if f.ok {
		return f
	}
	return fallback
}

// Ptr flattens the field to a nullable pointer.
func (f Field[T]) Ptr() *T {
	if !f.ok {
		return nil
	}
	v := f.value
	return &v
}

// First returns the first found field, or missing.
func First[T any](fields ...Field[T]) Field[T] {
	for _, f := range fields {
		if f.ok {
			return f
		}
	}
	return Missing[T]()
}
