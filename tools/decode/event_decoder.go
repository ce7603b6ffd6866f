package decode

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Options customizes decode behavior.
type Options struct {
	// Lenient decoding (default true): "123" -> int, 1.0 -> int64, etc.
	WeaklyTypedInput bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// DecodeEvent decodes a raw event payload (as delivered by the
// transport: map[string]any, []any or a bare scalar) into the typed
// payload T. Struct fields are matched via `json` tags. A decode
// failure means the event is malformed; callers drop the event and
// carry on.
func DecodeEvent[T any](payload any, opts ...Options) (*T, error) {
	if payload == nil {
		return nil, fmt.Errorf("payload is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		ErrorUnused:      false,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			sliceAnyToSliceStringHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &out, nil
}

// String extracts a bare string payload (events like typing_notice
// carry just an identity string).
func String(payload any) (string, error) {
	switch t := payload.(type) {
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("payload not string (got %T)", payload)
	}
}

// StringSlice extracts a []string payload (presence_snapshot carries
// a bare member list).
func StringSlice(payload any) ([]string, error) {
	switch t := payload.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("member %T not string", it)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("payload not string slice (got %T)", payload)
	}
}

// floatToIntHook converts float64 to int / int32 / int64 targets.
// JSON numbers always arrive as float64.
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// sliceAnyToSliceStringHook converts []any to []string.
func sliceAnyToSliceStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Slice || to != reflect.Slice {
			return data, nil
		}
		src, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(src))
		for _, it := range src {
			switch v := it.(type) {
			case string:
				out = append(out, v)
			case json.Number:
				out = append(out, v.String())
			default:
				b, _ := json.Marshal(v)
				out = append(out, string(b))
			}
		}
		return out, nil
	}
}
