package cachette

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLPairs reads a flat YAML mapping of option keys, keeping file order.
// An empty document yields no pairs.
func YAMLPairs(r io.Reader) ([]Pair, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("cachette: parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("cachette: parse yaml: line %d: want a mapping of options", root.Line)
	}

	pairs := make([]Pair, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		var val any
		if err := v.Decode(&val); err != nil {
			return nil, fmt.Errorf("cachette: parse yaml: line %d: %w", v.Line, err)
		}
		pairs = append(pairs, Pair{Key: k.Value, Value: val})
	}
	return pairs, nil
}

// LoadYAML resolves a YAML document through Load.
func LoadYAML(r io.Reader) (Config, error) {
	pairs, err := YAMLPairs(r)
	if err != nil {
		return Config{}, err
	}
	return Load(pairs...)
}

// LoadFile resolves a YAML file through Load.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the caller
	if err != nil {
		return Config{}, fmt.Errorf("cachette: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// EnvPairs reads <PREFIX>_<KEY> variables for every known key (and legacy
// aliases). Unset and empty variables are skipped. When a legacy alias and
// its canonical key are both set, the canonical key wins.
func EnvPairs(prefix string) []Pair {
	var keys []string
	for alias := range keyAliases {
		keys = append(keys, alias)
	}
	keys = append(keys, Keys()...)
	var pairs []Pair
	for _, k := range keys {
		name := strings.ToUpper(k)
		if prefix != "" {
			name = strings.ToUpper(prefix) + "_" + name
		}
		if v, ok := os.LookupEnv(name); ok && v != "" {
			pairs = append(pairs, Pair{Key: k, Value: v})
		}
	}
	return pairs
}

// LoadEnv resolves environment variables through Load.
func LoadEnv(prefix string) (Config, error) {
	return Load(EnvPairs(prefix)...)
}

// LoadFrom layers defaults < YAML file < environment. A missing file is not
// an error.
func LoadFrom(path, envPrefix string) (Config, error) {
	var pairs []Pair
	if path != "" {
		f, err := os.Open(path) //nolint:gosec // path comes from the caller
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("cachette: %w", err)
		default:
			p, err := YAMLPairs(f)
			_ = f.Close()
			if err != nil {
				return Config{}, err
			}
			pairs = p
		}
	}
	return Load(append(pairs, EnvPairs(envPrefix)...)...)
}
