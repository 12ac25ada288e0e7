package docstore

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// Encode marshals doc into a BSON document whose _id is id. Any version
// field on doc is dropped; backends own that field.
func Encode(id string, doc any) (bson.D, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode %T: %w", doc, err)
	}
	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("docstore: encode %T: %w", doc, err)
	}
	out := make(bson.D, 0, len(fields)+1)
	out = append(out, bson.E{Key: "_id", Value: id})
	for _, f := range fields {
		if f.Key == "_id" || f.Key == VersionField {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// DecodeAll decodes raw documents into out, which must point to a slice.
func DecodeAll(docs []bson.Raw, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("docstore: out must be a pointer to a slice, got %T", out)
	}
	slice := rv.Elem()
	elemType := slice.Type().Elem()
	result := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, d := range docs {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(d, elem.Interface()); err != nil {
			return fmt.Errorf("docstore: decode into %s: %w", elemType, err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	slice.Set(result)
	return nil
}
