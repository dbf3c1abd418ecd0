package accessor

import (
	"fmt"
	"go/token"
	"reflect"
	"strings"

	"github.com/raunlo/pgx-flatmapper/logger"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
	"go.uber.org/zap"
)

// ResolveSetter finds a setter for property on target, a struct type or a pointer to one.
//
// Registered compiled accessors win. Otherwise each link of the ownership
// chain (the struct, then its embedded structs breadth first) is searched for
// a Set<Property> method and then for a matching field. A field matches by
// name, ignoring case and underscores, or by its db or primaryKey tag.
// Missing properties return false, never an error.
func ResolveSetter(target reflect.Type, property string) (Setter, bool) {
	owner, ok := ownerType(target)
	if !ok {
		return nil, false
	}
	if r, ok := registered(owner, property); ok && r.canSet {
		return r.accessor, true
	}

	for _, link := range reflectutils.OwnershipChain(owner) {
		if m, ok := lookForMethod(link.Type, property, isSetterMethod, "Set"); ok {
			key := methodKey(owner, property, "set", link, m)
			if cached, ok := getCachedAccessor(key); ok {
				return cached.(Setter), true
			}
			setter := &methodSetter{owner: owner, method: m, index: link.Index, param: m.Type.In(1)}
			return cacheAccessor(key, setter).(Setter), true
		}
		if f, ok := lookForField(link.Type, property); ok {
			return fieldAccessorFor(owner, property, link, f), true
		}
	}
	return nil, false
}

// ResolveGetter finds a getter for property on target, searching <Property>()
// and Get<Property>() methods before fields, link by link like ResolveSetter.
func ResolveGetter(target reflect.Type, property string) (Getter, bool) {
	owner, ok := ownerType(target)
	if !ok {
		return nil, false
	}
	if r, ok := registered(owner, property); ok && r.canGet {
		return r.accessor, true
	}

	for _, link := range reflectutils.OwnershipChain(owner) {
		if m, ok := lookForMethod(link.Type, property, isGetterMethod, "Get", ""); ok {
			key := methodKey(owner, property, "get", link, m)
			if cached, ok := getCachedAccessor(key); ok {
				return cached.(Getter), true
			}
			getter := &methodGetter{owner: owner, method: m, index: link.Index}
			return cacheAccessor(key, getter).(Getter), true
		}
		if f, ok := lookForField(link.Type, property); ok {
			return fieldAccessorFor(owner, property, link, f), true
		}
	}
	return nil, false
}

func ownerType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	t = reflectutils.DeReferencePointer(t)
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	return t, true
}

// lookForMethod searches the methods declared on declaring itself, skipping
// methods promoted from its embedded fields.
func lookForMethod(declaring reflect.Type, property string, shaped func(reflect.Method) bool, prefixes ...string) (reflect.Method, bool) {
	ptr := reflect.PointerTo(declaring)
	for i := 0; i < ptr.NumMethod(); i++ {
		m := ptr.Method(i)
		if !shaped(m) || isPromoted(declaring, m.Name) {
			continue
		}
		for _, prefix := range prefixes {
			if reflectutils.MethodNameMatchesProperty(m.Name, prefix, property) {
				return m, true
			}
		}
	}
	return reflect.Method{}, false
}

func isPromoted(declaring reflect.Type, name string) bool {
	for i := 0; i < declaring.NumField(); i++ {
		field := declaring.Field(i)
		if !field.Anonymous {
			continue
		}
		embedded := field.Type
		if embedded.Kind() == reflect.Interface {
			if _, ok := embedded.MethodByName(name); ok {
				return true
			}
			continue
		}
		if _, ok := reflect.PointerTo(reflectutils.DeReferencePointer(embedded)).MethodByName(name); ok {
			return true
		}
	}
	return false
}

func lookForField(declaring reflect.Type, property string) (reflect.StructField, bool) {
	for i := 0; i < declaring.NumField(); i++ {
		field := declaring.Field(i)
		if !fieldModifiersMatch(field) {
			continue
		}
		if tagName(field, "db") == property || tagName(field, "primaryKey") == property ||
			reflectutils.NameMatchesProperty(field.Name, property) {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

func fieldModifiersMatch(field reflect.StructField) bool {
	return !field.Anonymous && field.Name != "_" && tagName(field, "db") != "-"
}

func tagName(field reflect.StructField, key string) string {
	name, _, _ := strings.Cut(field.Tag.Get(key), ",")
	return name
}

func fieldAccessorFor(owner reflect.Type, property string, link reflectutils.Owner, field reflect.StructField) Accessor {
	index := make([]int, 0, len(link.Index)+1)
	index = append(append(index, link.Index...), field.Index[0])

	key := cacheKey{
		owner:    owner,
		property: reflectutils.NormalizeName(property),
		member:   fmt.Sprintf("field:%v %s %s", index, field.Name, field.Type),
	}
	if cached, ok := getCachedAccessor(key); ok {
		return cached.(Accessor)
	}

	if field.IsExported() && token.IsExported(link.Type.Name()) && !link.ViaPointer {
		compiled, err := compileField(owner, field, index)
		if err == nil {
			return cacheAccessor(key, compiled).(Accessor)
		}
		logger.L().Debug("compiled accessor unavailable, using reflection",
			zap.Stringer("type", owner),
			zap.String("field", field.Name),
			zap.Error(err))
	}
	return cacheAccessor(key, newFieldAccessor(owner, field, index)).(Accessor)
}

func methodKey(owner reflect.Type, property, role string, link reflectutils.Owner, m reflect.Method) cacheKey {
	return cacheKey{
		owner:    owner,
		property: reflectutils.NormalizeName(property),
		member:   fmt.Sprintf("%s:%v %s%s", role, link.Index, m.Name, strings.TrimPrefix(m.Type.String(), "func")),
	}
}
