package decl

import (
	"fmt"
	"strings"
)

// Render renders types in order, each block followed by a blank line.
// A non-nil banner is written first as `// ` line comments plus a blank line;
// an empty banner still produces one comment line. Nothing is returned if any
// descriptor is invalid.
func Render(types []Type, banner *string) (string, error) {
	blocks := make([]string, 0, len(types))
	for _, t := range types {
		b, err := RenderBlock(t)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, b)
	}

	var sb strings.Builder
	if banner != nil {
		sb.WriteString(lineComment(*banner))
		sb.WriteString("\n")
	}
	for _, b := range blocks {
		sb.WriteString(b)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Banner is a convenience for passing a literal banner to Render.
func Banner(s string) *string { return &s }

// RenderBlock renders one declaration including its documentation comment,
// without the trailing separator line.
func RenderBlock(t Type) (string, error) {
	if err := Validate(t); err != nil {
		return "", err
	}
	doc := docComment(t.Doc())
	switch v := t.(type) {
	case Union:
		return doc + renderUnion(v), nil
	case *Union:
		return doc + renderUnion(*v), nil
	case Record:
		return doc + renderRecord(v), nil
	case *Record:
		return doc + renderRecord(*v), nil
	}
	// Validate rejects everything else.
	panic(fmt.Sprintf("decl: unhandled descriptor %T", t))
}

// Validate checks a descriptor without rendering it.
func Validate(t Type) error {
	switch v := t.(type) {
	case nil:
		return &ValidationError{Field: "type", Reason: "nil descriptor"}
	case Union:
		return validateUnion(v)
	case *Union:
		if v == nil {
			return &ValidationError{Field: "type", Reason: "nil descriptor"}
		}
		return validateUnion(*v)
	case Record:
		return validateRecord(v)
	case *Record:
		if v == nil {
			return &ValidationError{Field: "type", Reason: "nil descriptor"}
		}
		return validateRecord(*v)
	}
	return &ValidationError{Name: t.TypeName(), Field: "type", Value: fmt.Sprintf("%T", t), Reason: "unsupported descriptor kind"}
}

func validateUnion(u Union) error {
	if u.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	for i, m := range u.Members {
		if _, ok := m.Literal(); !ok {
			reason := "unsupported member kind"
			value := m.kind.String()
			if m.kind == MemberNumber {
				reason = "number is not finite"
				value = fmt.Sprint(m.num)
			}
			return &ValidationError{Name: u.Name, Field: fmt.Sprintf("members[%d]", i), Value: value, Reason: reason}
		}
	}
	return nil
}

func validateRecord(r Record) error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	seen := make(map[string]struct{}, len(r.Properties))
	for _, p := range r.Properties {
		field := "properties." + p.Name
		if p.Name == "" {
			return &ValidationError{Name: r.Name, Field: "properties", Reason: "property name is required"}
		}
		if _, dup := seen[p.Name]; dup {
			return &ValidationError{Name: r.Name, Field: field, Value: p.Name, Reason: "duplicate property"}
		}
		seen[p.Name] = struct{}{}
		if !p.Type.Valid() {
			return &ValidationError{Name: r.Name, Field: field, Value: string(p.Type), Reason: "unsupported type tag"}
		}
	}
	return nil
}

func renderUnion(u Union) string {
	members := make([]string, 0, len(u.Members)+2)
	seen := make(map[string]struct{}, len(u.Members)+2)
	add := func(lit string) {
		if _, ok := seen[lit]; ok {
			return
		}
		seen[lit] = struct{}{}
		members = append(members, lit)
	}
	for _, m := range u.Members {
		lit, _ := m.Literal()
		add(lit)
	}
	if u.AllowNull {
		add("null")
	}
	if u.AllowUndefined {
		add("undefined")
	}
	return fmt.Sprintf("export type %s = %s;\n", u.Name, strings.Join(members, " | "))
}

func renderRecord(r Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "export interface %s {\n", r.Name)
	opt := ""
	if r.Partial {
		opt = "?"
	}
	for _, p := range r.Properties {
		fmt.Fprintf(&sb, "  %s%s: %s;\n", p.Name, opt, p.Type)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func docComment(doc string) string {
	if doc == "" {
		return ""
	}
	lines := strings.Split(doc, "\n")
	var sb strings.Builder
	sb.WriteString("/**\n")
	for _, l := range lines {
		sb.WriteString(" *  ")
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString(" */\n")
	return sb.String()
}

func lineComment(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "// " + l
	}
	return strings.Join(lines, "\n") + "\n"
}
