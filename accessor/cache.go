package accessor

import (
	"reflect"
	"sync"
)

type cacheKey struct {
	owner    reflect.Type
	property string
	// member is the signature of the resolved method or field.
	member string
}

var (
	globalAccessorCache = sync.Map{}
)

func getCachedAccessor(key cacheKey) (any, bool) {
	return globalAccessorCache.Load(key)
}

// cacheAccessor publishes value for key once. A concurrent builder that loses
// the race gets the published accessor back and drops its own.
func cacheAccessor(key cacheKey, value any) any {
	actual, _ := globalAccessorCache.LoadOrStore(key, value)
	return actual
}

// CacheSize returns the number of cached accessors.
func CacheSize() int {
	n := 0
	globalAccessorCache.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
