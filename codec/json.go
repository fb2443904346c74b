package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// JSON uses encoding/json. Decoding into any yields float64 numbers and
// map[string]any objects.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// FastJSON is wire compatible with JSON but uses goccy/go-json.
type FastJSON[V any] struct{}

func (FastJSON[V]) Encode(v V) ([]byte, error) { return gojson.Marshal(v) }
func (FastJSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := gojson.Unmarshal(b, &v)
	return v, err
}
