package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/pkg/types"
)

// Section names accepted in identity files, mapped to canonical buckets.
var sectionBuckets = map[string]string{
	"person":  types.TypePerson,
	"persons": types.TypePerson,
	"people":  types.TypePerson,
	"humans":  types.TypePerson,
	"object":  types.TypeObject,
	"objects": types.TypeObject,
	"items":   types.TypeObject,
}

// ProfileLoader loads identity profiles from a JSON or YAML file.
type ProfileLoader struct {
	path string
}

// NewProfileLoader creates a loader for the given identities file. Files
// ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func NewProfileLoader(path string) *ProfileLoader {
	return &ProfileLoader{path: path}
}

// Load reads the identity profiles. A missing or corrupt file yields three
// empty buckets, never an error: identity data is an optimization, not a
// requirement, for ingestion.
//
// The document is either a mapping of section name to profiles, or a bare
// list of profiles (which all land in the unknown bucket). Each section's
// profiles may themselves be a mapping of id to record or a list of records
// keyed by their own id (or name). Profiles enter their bucket in document
// order: that order is the tie-break for ambiguous identity matches, so the
// parse must not reshuffle it.
func (l *ProfileLoader) Load() *resolve.ProfileSet {
	set := resolve.NewProfileSet()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("jsonfile: unreadable identities file %s, starting empty: %v", l.path, err)
		}
		return set
	}

	var doc any
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		doc, err = decodeYAML(data)
	default:
		doc, err = decodeJSON(data)
	}
	if err != nil {
		log.Printf("jsonfile: corrupt identities file %s, starting empty: %v", l.path, err)
		return set
	}

	switch payload := doc.(type) {
	case *orderedMap:
		for _, section := range payload.keys {
			bucketName, ok := sectionBuckets[strings.ToLower(section)]
			if !ok {
				bucketName = types.TypeUnknown
			}
			bucket := set.Bucket(bucketName)
			for _, profile := range parseSection(payload.values[section]) {
				bucket.Put(profile)
			}
		}
	case []any:
		for _, profile := range parseSection(payload) {
			set.Unknown.Put(profile)
		}
	}
	return set
}

// parseSection converts one section of an identity file into profiles. A
// mapping keys profiles by id (the record's own id wins over the map key); a
// list keys entries by their id, falling back to their name. Entries with
// neither are skipped.
func parseSection(section any) []*types.Profile {
	var out []*types.Profile
	switch value := section.(type) {
	case *orderedMap:
		for _, key := range value.keys {
			record, ok := value.values[key].(*orderedMap)
			if !ok {
				continue
			}
			profile := parseProfile(record)
			if profile.ID == "" {
				profile.ID = key
			}
			out = append(out, profile)
		}
	case []any:
		for _, entry := range value {
			record, ok := entry.(*orderedMap)
			if !ok {
				continue
			}
			profile := parseProfile(record)
			if profile.ID == "" {
				profile.ID = profile.Name
			}
			if profile.ID == "" {
				continue
			}
			out = append(out, profile)
		}
	}
	return out
}

func parseProfile(record *orderedMap) *types.Profile {
	profile := &types.Profile{
		Appearance: map[string]any{},
		Attributes: map[string]any{},
	}
	if id, ok := record.values["id"].(string); ok {
		profile.ID = id
	}
	if name, ok := record.values["name"].(string); ok {
		profile.Name = name
	}
	if typ, ok := record.values["type"].(string); ok {
		profile.Type = typ
	}
	if appearance, ok := record.values["appearance"].(*orderedMap); ok {
		profile.Appearance = appearance.plain()
	}
	if attributes, ok := record.values["attributes"].(*orderedMap); ok {
		profile.Attributes = attributes.plain()
	}
	return profile
}

// orderedMap is a decoded JSON/YAML object that remembers its key order.
// Go's map decode would lose that order, and bucket insertion order is the
// observable tie-break for ambiguous identity matches, so identity documents
// are decoded through this type instead.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: map[string]any{}}
}

func (m *orderedMap) set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// plain converts the map (recursively) to a regular Go map, for attribute
// bags whose key order carries no meaning.
func (m *orderedMap) plain() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, key := range m.keys {
		out[key] = plainValue(m.values[key])
	}
	return out
}

func plainValue(v any) any {
	switch value := v.(type) {
	case *orderedMap:
		return value.plain()
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

// decodeJSON decodes a JSON document via the token stream, preserving object
// key order.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	return decodeJSONValue(dec)
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := newOrderedMap()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is not a string: %v", keyTok)
			}
			value, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, value)
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return nil, err
		}
		return obj, nil
	case '[':
		var list []any
		for dec.More() {
			value, err := decodeJSONValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// decodeYAML decodes a YAML document via the node tree, preserving mapping
// key order.
func decodeYAML(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return decodeYAMLNode(&root)
}

func decodeYAMLNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeYAMLNode(node.Content[0])
	case yaml.MappingNode:
		obj := newOrderedMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := decodeYAMLNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.set(node.Content[i].Value, value)
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := decodeYAMLNode(item)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil
	case yaml.AliasNode:
		return decodeYAMLNode(node.Alias)
	default:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, err
		}
		return value, nil
	}
}
