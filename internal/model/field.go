package model

import (
	"bytes"
	"encoding/json"
)

// Field is an optional patch value that tells "absent" apart from an
// explicit JSON null. Set is true whenever the key was present; a nil Value
// then clears the stored field.
type Field[T any] struct {
	Set   bool
	Value *T
}

func SetField[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

func ClearField[T any]() Field[T] {
	return Field[T]{Set: true}
}

func (f Field[T]) IsZero() bool {
	return !f.Set
}

// Ptr returns a copy of the value, or nil when cleared or absent.
func (f Field[T]) Ptr() *T {
	if f.Value == nil {
		return nil
	}
	v := *f.Value
	return &v
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}
