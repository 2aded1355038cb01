// Package codec is the payload codec: a CBOR encoding of the JSON data
// model used for every object payload and edge property blob.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/iris/pkg/errdefs"
)

// The payload codec maps the JSON data model (null, bool, integer, float,
// string, array, map with string keys) to CBOR bytes. Integers decode as
// int64, floats as float64, arrays as []any, maps as map[string]any.
// Round-trip through Encode/Decode is exact within that model.

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes a JSON-model value to CBOR.
func Encode(v any) ([]byte, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}
	out, err := encMode.Marshal(norm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDecode, err)
	}
	return out, nil
}

// Decode parses CBOR bytes back into the JSON model.
func Decode(data []byte) (any, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDecode, err)
	}
	return normalize(v)
}

// FromJSONText parses a JSON document and encodes it as CBOR. Integral
// numbers stay integers; anything with a fraction or exponent becomes a
// float64.
func FromJSONText(text string) ([]byte, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDecode, err)
	}
	return Encode(v)
}

// ToJSONText decodes CBOR bytes and renders them as a compact JSON document.
func ToJSONText(data []byte) (string, error) {
	v, err := Decode(data)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrDecode, err)
	}
	return string(out), nil
}

// KV encodes a single-entry string map. Edge properties are usually this
// shape (e.g. {"hook": "rename_foo_to_bar"}).
func KV(key, value string) []byte {
	out, err := encMode.Marshal(map[string]string{key: value})
	if err != nil {
		// a two-string map cannot fail to encode
		panic(err)
	}
	return out
}

// normalize coerces decoded or caller-supplied values into the canonical
// in-memory model.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer %d overflows the payload model", errdefs.ErrDecode, x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		if !strings.ContainsAny(x.String(), ".eE") {
			if i, err := x.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrDecode, err)
		}
		return f, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			norm, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			norm, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: map key %v is not a string", errdefs.ErrDecode, k)
			}
			norm, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[ks] = norm
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported payload value %T", errdefs.ErrDecode, v)
	}
}
