// Package decl renders generated type descriptors as TypeScript declarations.
//
// A descriptor is either a Union (`export type X = "a" | 1 | null;`) or a
// Record (`export interface X { ... }`). Rendering is pure and deterministic;
// the same input always yields byte-identical output.
package decl

import (
	"math"
	"strconv"
	"strings"
)

// Type is a generated type descriptor. It is implemented by Union and Record only.
type Type interface {
	TypeName() string
	Doc() string
	isType()
}

// Union describes `export type Name = m1 | m2 | ...;`.
type Union struct {
	Name           string
	Documentation  string
	Members        []Member
	AllowNull      bool
	AllowUndefined bool
}

// Record describes `export interface Name { key: tag; ... }`.
type Record struct {
	Name          string
	Documentation string
	Properties    []Property
	// Partial marks every property optional.
	Partial bool
}

func (u Union) TypeName() string  { return u.Name }
func (u Union) Doc() string       { return u.Documentation }
func (Union) isType()             {}
func (r Record) TypeName() string { return r.Name }
func (r Record) Doc() string      { return r.Documentation }
func (Record) isType()            {}

// Primitive is the type tag of a record property.
type Primitive string

const (
	PrimitiveString    Primitive = "string"
	PrimitiveNumber    Primitive = "number"
	PrimitiveBoolean   Primitive = "boolean"
	PrimitiveNull      Primitive = "null"
	PrimitiveUndefined Primitive = "undefined"
)

// Valid reports whether p is one of the supported tags.
func (p Primitive) Valid() bool {
	switch p {
	case PrimitiveString, PrimitiveNumber, PrimitiveBoolean, PrimitiveNull, PrimitiveUndefined:
		return true
	}
	return false
}

// Property is a single record entry. Records keep properties in slice order.
type Property struct {
	Name string
	Type Primitive
}

// MemberKind discriminates Member values.
type MemberKind uint8

const (
	memberInvalid MemberKind = iota
	MemberString
	MemberNumber
	MemberNull
	MemberUndefined
)

func (k MemberKind) String() string {
	switch k {
	case MemberString:
		return "string"
	case MemberNumber:
		return "number"
	case MemberNull:
		return "null"
	case MemberUndefined:
		return "undefined"
	default:
		return "invalid"
	}
}

// Member is one union member: a string literal, a number literal, null or undefined.
// The zero Member is invalid and rejected by Render.
type Member struct {
	kind MemberKind
	str  string
	num  float64
}

// String returns a string literal member. The value is quoted verbatim.
func String(s string) Member { return Member{kind: MemberString, str: s} }

// Number returns a numeric literal member.
func Number(f float64) Member { return Member{kind: MemberNumber, num: f} }

// Int returns a numeric literal member from an integer.
func Int(i int64) Member { return Member{kind: MemberNumber, num: float64(i)} }

// Null returns the null member.
func Null() Member { return Member{kind: MemberNull} }

// Undefined returns the undefined member.
func Undefined() Member { return Member{kind: MemberUndefined} }

func (m Member) Kind() MemberKind { return m.kind }

// Literal renders the member as TypeScript source. ok is false for invalid
// members and for non-finite numbers.
func (m Member) Literal() (lit string, ok bool) {
	switch m.kind {
	case MemberNull:
		return "null", true
	case MemberUndefined:
		return "undefined", true
	case MemberString:
		return `"` + m.str + `"`, true
	case MemberNumber:
		if math.IsNaN(m.num) || math.IsInf(m.num, 0) {
			return "", false
		}
		return formatNumber(m.num), true
	}
	return "", false
}

// formatNumber follows JavaScript's Number.prototype.toString: plain decimals
// for 1e-6 <= |f| < 1e21, otherwise exponent form such as 1e+21 or 1.5e-7.
func formatNumber(f float64) string {
	if f == 0 {
		// -0 prints as 0 in JavaScript.
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + exp
}

// Value returns the member as a plain Go value: string, float64 or nil.
// Undefined also returns nil; use Kind to tell null and undefined apart.
func (m Member) Value() any {
	switch m.kind {
	case MemberString:
		return m.str
	case MemberNumber:
		return m.num
	}
	return nil
}
