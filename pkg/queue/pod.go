package queue

import "reflect"

// A type placed in shared memory must be trivially copyable: its bit
// pattern alone has to define its value, because a pointer copied into a
// mapping is meaningless in another process's address space. Go cannot
// express that as a compile-time bound, so ShmQueue.Init rejects
// pointer-bearing element types at runtime instead.

func isTriviallyCopyable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr, reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isTriviallyCopyable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isTriviallyCopyable(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		// Ptr, UnsafePointer, Map, Chan, Slice, String, Interface, Func.
		return false
	}
}
