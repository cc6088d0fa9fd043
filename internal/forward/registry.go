package forward

import "encoding/json"

// RegistryFile is the top-level shape of the persisted config file: a map
// from forward name to its definition. If the outer key differs from the
// inner Name field, the outer key wins — callers should use DecodeRegistry
// rather than unmarshalling into RegistryFile directly so that rewrite
// happens consistently.
type RegistryFile struct {
	Forwards map[string]*Definition `json:"forwards"`
}

// EncodeRegistry renders a set of definitions into the persisted JSON shape.
func EncodeRegistry(defs map[string]*Definition) ([]byte, error) {
	return json.MarshalIndent(RegistryFile{Forwards: defs}, "", "  ")
}

// DecodeRegistry parses the persisted JSON shape. Any entry whose Type is
// absent or unrecognized is skipped and reported by name rather than
// aborting the whole load — ConfigIOError is a per-file concern, not a
// per-entry one, except when the entire document fails to parse as JSON.
func DecodeRegistry(data []byte) (map[string]*Definition, []string, error) {
	var file struct {
		Forwards map[string]json.RawMessage `json:"forwards"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, err
	}

	defs := make(map[string]*Definition, len(file.Forwards))
	var skipped []string
	for key, raw := range file.Forwards {
		d, err := FromJSON(raw)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		// The outer map key wins over the inner name field.
		d.Name = key
		if d.Group == "" {
			d.Group = DefaultGroup
		}
		defs[key] = d
	}
	return defs, skipped, nil
}
