package extract

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/extypegen/decl"
)

// Encode writes descriptors in the document format read by Descriptors.
// format is "yaml" or "json".
func Encode(types []decl.Type, format string) ([]byte, error) {
	doc, err := toDocument(types)
	if err != nil {
		return nil, err
	}
	switch format {
	case "yaml", "yml", "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, "encode yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "encode yaml")
		}
		return buf.Bytes(), nil
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "encode json")
		}
		return append(data, '\n'), nil
	}
	return nil, errors.Newf("unsupported format %q", format)
}

type document struct {
	Types []descriptor `json:"types" yaml:"types"`
}

type descriptor struct {
	Name           string     `json:"name" yaml:"name"`
	Type           string     `json:"type" yaml:"type"`
	Doc            string     `json:"doc,omitempty" yaml:"doc,omitempty"`
	Members        members    `json:"members,omitempty" yaml:"members,omitempty"`
	AllowNull      bool       `json:"allowNull,omitempty" yaml:"allowNull,omitempty"`
	AllowUndefined bool       `json:"allowUndefined,omitempty" yaml:"allowUndefined,omitempty"`
	Properties     properties `json:"properties,omitempty" yaml:"properties,omitempty"`
	Partial        bool       `json:"partial,omitempty" yaml:"partial,omitempty"`
}

func toDocument(types []decl.Type) (document, error) {
	doc := document{Types: make([]descriptor, 0, len(types))}
	for _, t := range types {
		if err := decl.Validate(t); err != nil {
			return document{}, err
		}
		d := descriptor{Name: t.TypeName(), Doc: t.Doc()}
		switch v := t.(type) {
		case decl.Union:
			d.Type, d.Members, d.AllowNull, d.AllowUndefined = kindUnion, v.Members, v.AllowNull, v.AllowUndefined
		case *decl.Union:
			d.Type, d.Members, d.AllowNull, d.AllowUndefined = kindUnion, v.Members, v.AllowNull, v.AllowUndefined
		case decl.Record:
			d.Type, d.Properties, d.Partial = kindInterface, v.Properties, v.Partial
		case *decl.Record:
			d.Type, d.Properties, d.Partial = kindInterface, v.Properties, v.Partial
		}
		doc.Types = append(doc.Types, d)
	}
	return doc, nil
}

type members []decl.Member

func (ms members) MarshalYAML() (interface{}, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, m := range ms {
		n := &yaml.Node{Kind: yaml.ScalarNode}
		switch m.Kind() {
		case decl.MemberString:
			n.Tag, n.Value = "!!str", m.Value().(string)
		case decl.MemberNumber:
			lit, _ := m.Literal()
			n.Tag, n.Value = numberTag(lit), lit
		case decl.MemberNull:
			n.Tag, n.Value = "!!null", "null"
		case decl.MemberUndefined:
			n.Tag = undefinedTag
		}
		seq.Content = append(seq.Content, n)
	}
	return seq, nil
}

func (ms members) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(ms))
	for _, m := range ms {
		switch m.Kind() {
		case decl.MemberString:
			b, err := json.Marshal(m.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		case decl.MemberNumber:
			lit, _ := m.Literal()
			out = append(out, json.RawMessage(lit))
		case decl.MemberNull:
			out = append(out, json.RawMessage("null"))
		case decl.MemberUndefined:
			out = append(out, json.RawMessage(`{"undefined":true}`))
		}
	}
	return json.Marshal(out)
}

func numberTag(lit string) string {
	if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return "!!int"
	}
	return "!!float"
}

type properties []decl.Property

func (ps properties) MarshalYAML() (interface{}, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range ps {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(p.Type)},
		)
	}
	return m, nil
}

// MarshalJSON keeps property order, which a Go map would lose.
func (ps properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(string(p.Type))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
