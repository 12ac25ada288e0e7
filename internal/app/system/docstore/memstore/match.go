package memstore

import (
	"reflect"
	"strings"
	"time"

	"github.com/crewfund/crew/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindTime
	kindOther
)

// scalar is a comparable view of a BSON or Go value.
type scalar struct {
	kind valueKind
	i    int64
	f    float64
	isF  bool
	s    string
	b    bool
}

func toScalar(v any) scalar {
	switch x := v.(type) {
	case nil:
		return scalar{kind: kindNull}
	case primitive.DateTime:
		return scalar{kind: kindTime, i: int64(x)}
	case time.Time:
		return scalar{kind: kindTime, i: int64(primitive.NewDateTimeFromTime(x))}
	case *time.Time:
		if x == nil {
			return scalar{kind: kindNull}
		}
		return scalar{kind: kindTime, i: int64(primitive.NewDateTimeFromTime(*x))}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return scalar{kind: kindBool, b: rv.Bool()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar{kind: kindNumber, i: rv.Int()}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return scalar{kind: kindNumber, i: int64(rv.Uint())}
	case reflect.Float32, reflect.Float64:
		return scalar{kind: kindNumber, f: rv.Float(), isF: true}
	case reflect.String:
		return scalar{kind: kindString, s: rv.String()}
	}
	return scalar{kind: kindOther}
}

// compare orders two scalars of the same kind. ok is false when the kinds
// differ or are not orderable.
func compare(a, b scalar) (int, bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case kindNull:
		return 0, true
	case kindBool:
		switch {
		case a.b == b.b:
			return 0, true
		case !a.b:
			return -1, true
		default:
			return 1, true
		}
	case kindNumber:
		if a.isF || b.isF {
			af, bf := a.f, b.f
			if !a.isF {
				af = float64(a.i)
			}
			if !b.isF {
				bf = float64(b.i)
			}
			return cmp3(af, bf), true
		}
		return cmp3(a.i, b.i), true
	case kindString:
		return strings.Compare(a.s, b.s), true
	case kindTime:
		return cmp3(a.i, b.i), true
	}
	return 0, false
}

func cmp3[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func equal(a, b any) bool {
	c, ok := compare(toScalar(a), toScalar(b))
	return ok && c == 0
}

// matches evaluates every filter against a decoded document.
func matches(doc bson.M, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !matchOne(doc[f.Field], f) {
			return false
		}
	}
	return true
}

func matchOne(field any, f docstore.Filter) bool {
	if arr, ok := field.(primitive.A); ok {
		switch f.Op {
		case docstore.Eq:
			for _, el := range arr {
				if equal(el, f.Value) {
					return true
				}
			}
			return false
		case docstore.Ne:
			for _, el := range arr {
				if equal(el, f.Value) {
					return false
				}
			}
			return true
		}
	}

	switch f.Op {
	case docstore.Eq:
		return equal(field, f.Value)
	case docstore.Ne:
		return !equal(field, f.Value)
	case docstore.In:
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if equal(field, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}

	c, ok := compare(toScalar(field), toScalar(f.Value))
	if !ok {
		return false
	}
	switch f.Op {
	case docstore.Lt:
		return c < 0
	case docstore.Lte:
		return c <= 0
	case docstore.Gt:
		return c > 0
	case docstore.Gte:
		return c >= 0
	}
	return false
}

// less orders documents by field; missing or mismatched values sort first.
func less(a, b bson.M, field string) bool {
	sa, sb := toScalar(a[field]), toScalar(b[field])
	if c, ok := compare(sa, sb); ok {
		return c < 0
	}
	return sa.kind < sb.kind
}
