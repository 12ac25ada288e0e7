// internal/domain/models/idverification.go
package models

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// IDVerification is the tri-state KYC flag. It is stored as false,
// "Pending" or true so existing documents keep decoding.
type IDVerification int

const (
	IDNotVerified IDVerification = iota
	IDPending
	IDVerified
)

const pendingLiteral = "Pending"

func (v IDVerification) String() string {
	switch v {
	case IDPending:
		return "pending"
	case IDVerified:
		return "verified"
	default:
		return "not_verified"
	}
}

func (v IDVerification) wire() any {
	switch v {
	case IDPending:
		return pendingLiteral
	case IDVerified:
		return true
	default:
		return false
	}
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (v IDVerification) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(v.wire())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (v *IDVerification) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Boolean:
		if raw.Boolean() {
			*v = IDVerified
		} else {
			*v = IDNotVerified
		}
	case bsontype.String:
		if raw.StringValue() == pendingLiteral {
			*v = IDPending
		} else {
			*v = IDNotVerified
		}
	case bsontype.Null, bsontype.Undefined:
		*v = IDNotVerified
	default:
		return fmt.Errorf("is_id_verified: unexpected bson type %s", t)
	}
	return nil
}

// MarshalJSON mirrors the stored encoding.
func (v IDVerification) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.wire())
}

// UnmarshalJSON accepts the same false, "Pending" and true forms.
func (v *IDVerification) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		if x {
			*v = IDVerified
		} else {
			*v = IDNotVerified
		}
	case string:
		if x == pendingLiteral {
			*v = IDPending
		} else {
			*v = IDNotVerified
		}
	case nil:
		*v = IDNotVerified
	default:
		return fmt.Errorf("is_id_verified: unexpected json value %s", b)
	}
	return nil
}
