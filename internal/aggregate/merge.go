package aggregate

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/provider"
)

// Merge folds ok outcomes into one category payload. Outcomes must be in
// precedence order: each field is taken from the first source that
// provides it non-default, so the result depends only on the configured
// order, never on completion timing. Returns the merged payload and the
// sources that won at least one field, in precedence order.
func Merge(cat model.Category, ordered []provider.Outcome) (any, []string) {
	acc := model.EmptyPayload(cat)
	sources := []string{}

	for _, o := range ordered {
		if !o.OK || o.Data == nil {
			continue
		}
		n := overlayMissing(acc, o.Data)
		if n < 0 {
			zap.L().Warn("aggregate: adapter returned wrong payload type",
				zap.String("category", string(cat)),
				zap.String("adapter", o.Source),
			)
			continue
		}
		if n > 0 {
			sources = append(sources, o.Source)
		}
	}

	return acc, sources
}

// overlayMissing copies src fields into dst where dst is still default
// and src is not. Both must be pointers to the same payload struct type;
// a type mismatch returns -1. Returns the number of fields copied.
func overlayMissing(dst, src any) int {
	dv := reflect.ValueOf(dst)
	sv := reflect.ValueOf(src)
	if dv.Kind() != reflect.Pointer || sv.Kind() != reflect.Pointer || dv.Type() != sv.Type() {
		return -1
	}
	dv = dv.Elem()
	sv = sv.Elem()
	if dv.Kind() != reflect.Struct {
		return -1
	}

	n := 0
	for i := 0; i < dv.NumField(); i++ {
		d := dv.Field(i)
		s := sv.Field(i)
		if isDefault(s) || !isDefault(d) {
			continue
		}
		d.Set(s)
		n++
	}
	return n
}

// isDefault reports whether a payload field carries no data: nil pointer,
// pointer to a zero scalar, empty collection, or zero value. A provider
// answering "" for a description has found nothing, same as answering
// null, so neither shadows a later source's real value.
func isDefault(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer:
		return v.IsNil() || isDefault(v.Elem())
	case reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.String:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
