package extract

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/extypegen/collector"
	"github.com/Alia5/extypegen/decl"
)

// undefinedTag marks an undefined union member in YAML: `- !undefined`.
const undefinedTag = "!undefined"

const (
	kindUnion     = "union"
	kindInterface = "interface"
)

// rawDescriptor is the document shape shared by the JSON, YAML and TOML loaders.
//
//	types:
//	  - name: Status
//	    type: union
//	    doc: Lifecycle state.
//	    members: [active, inactive, 1, null, !undefined]
//	    allowNull: true
//	  - name: User
//	    type: interface
//	    partial: true
//	    properties:
//	      id: number
//	      name: string
type rawDescriptor struct {
	Name           string      `yaml:"name"`
	Type           string      `yaml:"type"`
	Doc            string      `yaml:"doc"`
	JSDoc          string      `yaml:"jsDoc"`
	Members        []yaml.Node `yaml:"members"`
	AllowNull      bool        `yaml:"allowNull"`
	AllowUndefined bool        `yaml:"allowUndefined"`
	Properties     yaml.Node   `yaml:"properties"`
	Partial        bool        `yaml:"partial"`
}

// Descriptors reads descriptor documents from .json, .yaml, .yml and .toml
// files. Other files are ignored. Files are visited in sorted path order.
func Descriptors(files collector.FilesMap) ([]decl.Type, error) {
	var out []decl.Type
	for _, path := range files.Paths() {
		var (
			types []decl.Type
			err   error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml":
			types, err = decodeYAMLDescriptors([]byte(files[path]))
		case ".toml":
			types, err = decodeTOMLDescriptors([]byte(files[path]))
		default:
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "descriptor file %s", path)
		}
		out = append(out, types...)
	}
	return out, nil
}

func decodeYAMLDescriptors(data []byte) ([]decl.Type, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		return nil, nil
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	var list *yaml.Node
	switch doc.Kind {
	case yaml.SequenceNode:
		list = doc
	case yaml.MappingNode:
		list = mappingValue(doc, "types")
		if list == nil {
			return nil, nil
		}
		if list.Kind != yaml.SequenceNode {
			return nil, errors.Newf("line %d: types must be a list", list.Line)
		}
	default:
		return nil, errors.Newf("line %d: expected a list of descriptors or a 'types' key", doc.Line)
	}

	types := make([]decl.Type, 0, len(list.Content))
	for _, n := range list.Content {
		var raw rawDescriptor
		if err := n.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		t, err := raw.toType()
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		types = append(types, t)
	}
	return types, nil
}

func (r rawDescriptor) toType() (decl.Type, error) {
	doc := r.Doc
	if doc == "" {
		doc = r.JSDoc
	}
	doc = strings.TrimRight(doc, "\n")
	switch r.Type {
	case kindUnion:
		members := make([]decl.Member, 0, len(r.Members))
		for i := range r.Members {
			m, err := memberFromNode(&r.Members[i])
			if err != nil {
				return nil, errors.Wrapf(err, "%s: members[%d]", r.Name, i)
			}
			members = append(members, m)
		}
		return decl.Union{
			Name:           r.Name,
			Documentation:  doc,
			Members:        members,
			AllowNull:      r.AllowNull,
			AllowUndefined: r.AllowUndefined,
		}, nil
	case kindInterface, "record":
		props, err := propertiesFromNode(&r.Properties)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: properties", r.Name)
		}
		return decl.Record{
			Name:          r.Name,
			Documentation: doc,
			Properties:    props,
			Partial:       r.Partial,
		}, nil
	}
	return nil, errors.Newf("%s: unknown descriptor type %q (expected union or interface)", r.Name, r.Type)
}

func memberFromNode(n *yaml.Node) (decl.Member, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case undefinedTag:
			return decl.Undefined(), nil
		case "!!null":
			return decl.Null(), nil
		case "!!str":
			return decl.String(n.Value), nil
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return decl.Member{}, err
			}
			return decl.Number(f), nil
		}
		return decl.Member{}, errors.Newf("unsupported member %q (%s)", n.Value, n.Tag)
	case yaml.MappingNode:
		// JSON cannot carry the !undefined tag, so {"undefined": true} is accepted too.
		if v := mappingValue(n, "undefined"); v != nil && len(n.Content) == 2 && v.Value == "true" {
			return decl.Undefined(), nil
		}
	}
	return decl.Member{}, errors.Newf("line %d: unsupported member", n.Line)
}

// propertiesFromNode accepts a mapping (`id: number`) or a list of
// {name, type} pairs. Both keep document order.
func propertiesFromNode(n *yaml.Node) ([]decl.Property, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
		props := make([]decl.Property, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, errors.Newf("line %d: property %s must map to a type tag", v.Line, k.Value)
			}
			props = append(props, decl.Property{Name: k.Value, Type: decl.Primitive(v.Value)})
		}
		return props, nil
	case yaml.SequenceNode:
		var list []decl.Property
		for _, item := range n.Content {
			var p struct {
				Name string `yaml:"name"`
				Type string `yaml:"type"`
			}
			if err := item.Decode(&p); err != nil {
				return nil, err
			}
			list = append(list, decl.Property{Name: p.Name, Type: decl.Primitive(p.Type)})
		}
		return list, nil
	}
	return nil, errors.Newf("line %d: properties must be a mapping or a list", n.Line)
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func decodeTOMLDescriptors(data []byte) ([]decl.Type, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	raw := tree.Get("types")
	if raw == nil {
		return nil, nil
	}
	tables, ok := raw.([]*toml.Tree)
	if !ok {
		return nil, errors.New("types must be an array of tables ([[types]])")
	}

	types := make([]decl.Type, 0, len(tables))
	for i, t := range tables {
		d, err := tomlDescriptor(t)
		if err != nil {
			return nil, errors.Wrapf(err, "types[%d]", i)
		}
		types = append(types, d)
	}
	return types, nil
}

func tomlDescriptor(t *toml.Tree) (decl.Type, error) {
	name := tomlString(t, "name")
	doc := tomlString(t, "doc")
	if doc == "" {
		doc = tomlString(t, "jsDoc")
	}
	doc = strings.TrimRight(doc, "\n")
	switch kind := tomlString(t, "type"); kind {
	case kindUnion:
		var members []decl.Member
		if raw := t.Get("members"); raw != nil {
			values, ok := raw.([]interface{})
			if !ok {
				return nil, errors.Newf("%s: members must be an array", name)
			}
			for i, v := range values {
				switch mv := v.(type) {
				case string:
					members = append(members, decl.String(mv))
				case int64:
					members = append(members, decl.Int(mv))
				case float64:
					members = append(members, decl.Number(mv))
				default:
					return nil, errors.Newf("%s: members[%d]: unsupported value %v", name, i, v)
				}
			}
		}
		return decl.Union{
			Name:           name,
			Documentation:  doc,
			Members:        members,
			AllowNull:      tomlBool(t, "allowNull"),
			AllowUndefined: tomlBool(t, "allowUndefined"),
		}, nil
	case kindInterface, "record":
		props, err := tomlProperties(t.Get("properties"))
		if err != nil {
			return nil, errors.Wrapf(err, "%s: properties", name)
		}
		return decl.Record{
			Name:          name,
			Documentation: doc,
			Properties:    props,
			Partial:       tomlBool(t, "partial"),
		}, nil
	default:
		return nil, errors.Newf("%s: unknown descriptor type %q (expected union or interface)", name, kind)
	}
}

// tomlProperties reads [types.properties] tables in source order, or
// [[types.properties]] arrays of {name, type}.
func tomlProperties(raw interface{}) ([]decl.Property, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *toml.Tree:
		keys := v.Keys()
		sort.SliceStable(keys, func(i, j int) bool {
			pi, pj := v.GetPositionPath([]string{keys[i]}), v.GetPositionPath([]string{keys[j]})
			if pi.Line != pj.Line {
				return pi.Line < pj.Line
			}
			if pi.Col != pj.Col {
				return pi.Col < pj.Col
			}
			return keys[i] < keys[j]
		})
		props := make([]decl.Property, 0, len(keys))
		for _, k := range keys {
			tag, ok := v.GetPath([]string{k}).(string)
			if !ok {
				return nil, errors.Newf("property %s must map to a type tag", k)
			}
			props = append(props, decl.Property{Name: k, Type: decl.Primitive(tag)})
		}
		return props, nil
	case []*toml.Tree:
		props := make([]decl.Property, 0, len(v))
		for _, t := range v {
			props = append(props, decl.Property{Name: tomlString(t, "name"), Type: decl.Primitive(tomlString(t, "type"))})
		}
		return props, nil
	}
	return nil, errors.New("properties must be a table or an array of tables")
}

func tomlString(t *toml.Tree, key string) string {
	s, _ := t.Get(key).(string)
	return s
}

func tomlBool(t *toml.Tree, key string) bool {
	b, _ := t.Get(key).(bool)
	return b
}
