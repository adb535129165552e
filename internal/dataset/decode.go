package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
)

// decodeValue converts a raw JSON value into Go values, keeping object key
// order by producing *Object for every JSON object.
func decodeValue(raw []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode string: %w", err)
		}
		return s, nil
	case jsonparser.Number:
		return json.Number(string(raw)), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return nil, fmt.Errorf("decode boolean: %w", err)
		}
		return b, nil
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		return decodeObject(raw)
	case jsonparser.Array:
		return decodeArray(raw)
	default:
		return nil, fmt.Errorf("unsupported json value type %s", dataType)
	}
}

func decodeObject(raw []byte) (*Object, error) {
	obj := NewObject()
	err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		v, err := decodeValue(value, dataType)
		if err != nil {
			return fmt.Errorf("key %q: %w", string(key), err)
		}
		obj.Set(string(key), v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(raw []byte) ([]any, error) {
	items := make([]any, 0)
	var firstErr error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = err
			return
		}
		v, err := decodeValue(value, dataType)
		if err != nil {
			firstErr = fmt.Errorf("index %d: %w", len(items), err)
			return
		}
		items = append(items, v)
	})
	if err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return items, nil
}

// DecodeObject parses a single JSON object with key order preserved.
func DecodeObject(data []byte) (*Object, error) {
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, err
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("expected json object, got %s", dataType)
	}
	return decodeObject(raw)
}
