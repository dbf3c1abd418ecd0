package reflect

import (
	"reflect"
	"strings"
	"unicode"
	"unsafe"
)

func DeReferencePointer(v reflect.Type) reflect.Type {
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

// IsStructType reports whether t is a struct or a pointer to one.
func IsStructType(t reflect.Type) bool {
	return DeReferencePointer(t).Kind() == reflect.Struct
}

// Owner is one link of a struct's ownership chain: the struct itself or a
// struct reachable through embedded (anonymous) fields.
type Owner struct {
	Type reflect.Type
	// Index is the field index path from the root struct to this owner.
	Index []int
	// ViaPointer is set when any hop on the path goes through an embedded pointer.
	ViaPointer bool
}

// OwnershipChain lists t followed by every struct it embeds, breadth first.
// Each embedded type is visited once, so self-referencing embeddings terminate.
func OwnershipChain(t reflect.Type) []Owner {
	t = DeReferencePointer(t)
	if t.Kind() != reflect.Struct {
		return nil
	}

	chain := []Owner{{Type: t}}
	visited := map[reflect.Type]bool{t: true}
	for i := 0; i < len(chain); i++ {
		owner := chain[i]
		for index := 0; index < owner.Type.NumField(); index++ {
			field := owner.Type.Field(index)
			if !field.Anonymous {
				continue
			}
			embedded := field.Type
			viaPointer := owner.ViaPointer
			if embedded.Kind() == reflect.Ptr {
				embedded = embedded.Elem()
				viaPointer = true
			}
			if embedded.Kind() != reflect.Struct || visited[embedded] {
				continue
			}
			visited[embedded] = true

			path := make([]int, len(owner.Index), len(owner.Index)+1)
			copy(path, owner.Index)
			chain = append(chain, Owner{Type: embedded, Index: append(path, index), ViaPointer: viaPointer})
		}
	}
	return chain
}

// NormalizeName lower-cases name and drops underscores, so "user_name",
// "UserName" and "username" compare equal.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NameMatchesProperty compares a Go identifier with a property name.
func NameMatchesProperty(name, property string) bool {
	return NormalizeName(name) == NormalizeName(property)
}

// MethodNameMatchesProperty reports whether method is prefix followed by the property name,
// e.g. SetUserName for "user_name" with prefix "Set".
func MethodNameMatchesProperty(method, prefix, property string) bool {
	if !strings.HasPrefix(method, prefix) || len(method) == len(prefix) {
		return false
	}
	return NameMatchesProperty(method[len(prefix):], property)
}

// FieldByIndexAlloc walks index from v, allocating nil embedded pointers on the way.
// v must be addressable.
func FieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				Settable(v).Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// Settable returns a writable view of an addressable value, overriding the
// read-only flag reflect puts on unexported fields.
func Settable(v reflect.Value) reflect.Value {
	if v.CanSet() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// FieldByIndexNoAlloc walks index from v and reports false when a nil embedded pointer is met.
func FieldByIndexNoAlloc(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
