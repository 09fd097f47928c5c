// Package optional holds a value which may or may not have been set. It is
// used where the zero value is a valid value, such as queue family index 0.
package optional

// Optional is a value of type T together with a flag telling whether it was set.
type Optional[T any] struct {
	value T
	set   bool
}

// Of returns an Optional which holds val.
func Of[T any](val T) Optional[T] {
	return Optional[T]{value: val, set: true}
}

// Set stores val and marks the optional as having a value.
func (o *Optional[T]) Set(val T) {
	o.value = val
	o.set = true
}

// Get returns the stored value. It returns the zero value of T when nothing
// has been set, so check HasValue first.
func (o Optional[T]) Get() T {
	return o.value
}

// HasValue returns true if Set has been called.
func (o Optional[T]) HasValue() bool {
	return o.set
}

// Reset forgets the stored value.
func (o *Optional[T]) Reset() {
	var zero T
	o.value = zero
	o.set = false
}
