package extract

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Alia5/extypegen/collector"
	"github.com/Alia5/extypegen/decl"
)

// partialDirective in a struct's doc comment marks the generated interface partial.
const partialDirective = "//extypegen:partial"

// enumType is a named type over a basic type, e.g. `type Status string`.
type enumType struct {
	name    string
	doc     string
	prim    decl.Primitive
	members []decl.Member
}

type goDecl struct {
	key    string // "dir:pkg.Type"
	path   string
	enum   *enumType
	record *decl.Record
}

// goFile is a parsed source with its scope, the directory and package name
// pair that identifies a Go package independently of its name.
type goFile struct {
	path  string
	scope string
	ast   *ast.File
}

type goScan struct {
	fset  *token.FileSet
	decls []goDecl
	enums map[string]*enumType // "dir:pkg.Type" -> enum
	// scopes maps a package name to every scope declaring it, for resolving
	// qualified references such as models.Status.
	scopes map[string][]string
	// consts are resolved after every file was parsed, since constants may
	// live in a different file than their type.
	consts []constInfo
}

type constInfo struct {
	key   string // "dir:pkg.Type"
	value any    // string, int64 or float64
}

// GoSource extracts declarations from Go source files:
//
//   - a named string or numeric type with exported typed constants becomes a
//     union of the constant values,
//   - an exported struct becomes an interface of its primitive fields, keyed
//     by json tag name.
//
// _test.go files and files that are not Go sources are ignored. Packages are
// told apart by directory, so two packages sharing a name keep their own
// types; two emitted types with the same name are an error.
func GoSource(files collector.FilesMap) ([]decl.Type, error) {
	s := &goScan{
		fset:   token.NewFileSet(),
		enums:  make(map[string]*enumType),
		scopes: make(map[string][]string),
	}
	var parsed []goFile
	for _, path := range files.Paths() {
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(s.fset, path, files[path], parser.ParseComments)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		gf := goFile{path: path, scope: filepath.Dir(path) + ":" + f.Name.Name, ast: f}
		parsed = append(parsed, gf)
		s.addScope(f.Name.Name, gf.scope)
		s.collectTypes(gf)
	}
	// Struct fields may reference enum types declared in later files.
	for _, f := range parsed {
		s.collectRecords(f)
		s.collectConsts(f)
	}
	for _, c := range s.consts {
		e, ok := s.enums[c.key]
		if !ok {
			continue
		}
		e.members = append(e.members, memberFromValue(c.value))
	}

	var out []decl.Type
	declaredIn := make(map[string]string)
	for _, d := range s.decls {
		var t decl.Type
		switch {
		case d.enum != nil:
			if len(d.enum.members) == 0 {
				continue
			}
			t = decl.Union{
				Name:          d.enum.name,
				Documentation: d.enum.doc,
				Members:       d.enum.members,
			}
		case d.record != nil:
			if len(d.record.Properties) == 0 {
				continue
			}
			t = *d.record
		default:
			continue
		}
		if prev, ok := declaredIn[t.TypeName()]; ok {
			return nil, errors.WithHint(
				errors.Newf("type %s is declared in both %s and %s", t.TypeName(), prev, d.path),
				"rename one of the types or narrow the entry paths",
			)
		}
		declaredIn[t.TypeName()] = d.path
		out = append(out, t)
	}
	return out, nil
}

func (s *goScan) addScope(pkg, scope string) {
	for _, known := range s.scopes[pkg] {
		if known == scope {
			return
		}
	}
	s.scopes[pkg] = append(s.scopes[pkg], scope)
}

// qualified resolves pkg.Name to a key when exactly one scanned package is
// called pkg.
func (s *goScan) qualified(pkg, name string) (string, bool) {
	if scopes := s.scopes[pkg]; len(scopes) == 1 {
		return scopes[0] + "." + name, true
	}
	return "", false
}

// collectTypes registers enum candidates and placeholders for structs so the
// output keeps declaration order.
func (s *goScan) collectTypes(f goFile) {
	for _, d := range f.ast.Decls {
		genDecl, ok := d.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok || !typeSpec.Name.IsExported() || typeSpec.TypeParams != nil {
				continue
			}
			doc := typeSpec.Doc
			if doc == nil && len(genDecl.Specs) == 1 {
				doc = genDecl.Doc
			}
			switch t := typeSpec.Type.(type) {
			case *ast.Ident:
				prim, ok := primitiveOf(t.Name)
				if !ok || prim == decl.PrimitiveBoolean || typeSpec.Assign.IsValid() {
					continue
				}
				e := &enumType{name: typeSpec.Name.Name, doc: docText(doc), prim: prim}
				key := f.scope + "." + e.name
				s.enums[key] = e
				s.decls = append(s.decls, goDecl{key: key, path: f.path, enum: e})
			case *ast.StructType:
				r := &decl.Record{
					Name:          typeSpec.Name.Name,
					Documentation: docText(doc),
					Partial:       hasDirective(doc, partialDirective),
				}
				s.decls = append(s.decls, goDecl{key: f.scope + "." + r.Name, path: f.path, record: r})
			}
		}
	}
}

func (s *goScan) collectRecords(f goFile) {
	records := make(map[string]*decl.Record)
	for _, d := range s.decls {
		if d.record != nil {
			records[d.key] = d.record
		}
	}
	for _, d := range f.ast.Decls {
		genDecl, ok := d.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			structType, ok := typeSpec.Type.(*ast.StructType)
			if !ok {
				continue
			}
			r, ok := records[f.scope+"."+typeSpec.Name.Name]
			if !ok || len(r.Properties) > 0 {
				continue
			}
			r.Properties = s.structProperties(f.scope, structType)
		}
	}
}

func (s *goScan) structProperties(scope string, st *ast.StructType) []decl.Property {
	var props []decl.Property
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		prim, ok := s.fieldPrimitive(scope, field.Type)
		if !ok {
			continue
		}
		for _, name := range field.Names {
			if !name.IsExported() {
				continue
			}
			jsonName := name.Name
			if field.Tag != nil {
				tag, err := strconv.Unquote(field.Tag.Value)
				if err == nil {
					jsonTag := reflect.StructTag(tag).Get("json")
					if jsonTag == "-" {
						continue
					}
					if n, _, _ := strings.Cut(jsonTag, ","); n != "" {
						jsonName = n
					}
				}
			}
			props = append(props, decl.Property{Name: jsonName, Type: prim})
		}
	}
	return props
}

func (s *goScan) fieldPrimitive(scope string, expr ast.Expr) (decl.Primitive, bool) {
	if t, ok := expr.(*ast.Ident); ok {
		if prim, ok := primitiveOf(t.Name); ok {
			return prim, true
		}
	}
	if t, ok := expr.(*ast.StarExpr); ok {
		return s.fieldPrimitive(scope, t.X)
	}
	key, ok := s.typeKey(scope, expr)
	if !ok {
		return "", false
	}
	if e, ok := s.enums[key]; ok {
		return e.prim, true
	}
	return "", false
}

// collectConsts walks const groups, tracking iota and implicit repetition of
// the previous spec's type and expression.
func (s *goScan) collectConsts(f goFile) {
	for _, d := range f.ast.Decls {
		genDecl, ok := d.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.CONST {
			continue
		}
		var (
			lastType   ast.Expr
			lastValues []ast.Expr
		)
		for n, spec := range genDecl.Specs {
			valueSpec, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			if valueSpec.Type != nil || len(valueSpec.Values) > 0 {
				lastType = valueSpec.Type
				lastValues = valueSpec.Values
			}
			for i, name := range valueSpec.Names {
				if !name.IsExported() || i >= len(lastValues) {
					continue
				}
				typeExpr := lastType
				if typeExpr == nil {
					// Untyped spec holding a conversion: `A = Status("a")`.
					if call, ok := lastValues[i].(*ast.CallExpr); ok {
						typeExpr = call.Fun
					}
				}
				key, ok := s.typeKey(f.scope, typeExpr)
				if !ok {
					continue
				}
				v, ok := evalConst(lastValues[i], int64(n))
				if !ok {
					continue
				}
				s.consts = append(s.consts, constInfo{key: key, value: v})
			}
		}
	}
}

// typeKey resolves a type reference made from scope. Qualified references to
// a package name shared by several scanned directories are dropped.
func (s *goScan) typeKey(scope string, expr ast.Expr) (string, bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return scope + "." + t.Name, true
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			return s.qualified(x.Name, t.Sel.Name)
		}
	}
	return "", false
}

var builtinFuncs = map[string]bool{
	"len": true, "cap": true, "real": true, "imag": true, "complex": true, "min": true, "max": true,
}

// evalConst folds a constant expression to a string, int64 or float64.
func evalConst(expr ast.Expr, iota int64) (any, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT:
			if v, err := strconv.ParseInt(e.Value, 0, 64); err == nil {
				return v, true
			}
		case token.FLOAT:
			if v, err := strconv.ParseFloat(e.Value, 64); err == nil {
				return v, true
			}
		case token.STRING:
			if v, err := strconv.Unquote(e.Value); err == nil {
				return v, true
			}
		case token.CHAR:
			if v, err := strconv.Unquote(e.Value); err == nil && v != "" {
				return int64([]rune(v)[0]), true
			}
		}
	case *ast.Ident:
		if e.Name == "iota" {
			return iota, true
		}
	case *ast.ParenExpr:
		return evalConst(e.X, iota)
	case *ast.CallExpr:
		// Conversions such as Status("x") or Level(1 << iota).
		if len(e.Args) != 1 {
			return nil, false
		}
		if fn, ok := e.Fun.(*ast.Ident); ok && builtinFuncs[fn.Name] {
			return nil, false
		}
		return evalConst(e.Args[0], iota)
	case *ast.UnaryExpr:
		x, ok := evalConst(e.X, iota)
		if !ok {
			return nil, false
		}
		switch e.Op {
		case token.ADD:
			return x, true
		case token.SUB:
			switch v := x.(type) {
			case int64:
				if v == math.MinInt64 {
					return nil, false
				}
				return -v, true
			case float64:
				return -v, true
			}
		}
	case *ast.BinaryExpr:
		x, okx := evalConst(e.X, iota)
		y, oky := evalConst(e.Y, iota)
		if !okx || !oky {
			return nil, false
		}
		return foldBinary(e.Op, x, y)
	}
	return nil, false
}

func foldBinary(op token.Token, x, y any) (any, bool) {
	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok && op == token.ADD {
			return xs + ys, true
		}
		return nil, false
	}
	xi, xInt := x.(int64)
	yi, yInt := y.(int64)
	// Results that do not fit in int64 are rejected rather than wrapped.
	if xInt && yInt {
		switch op {
		case token.ADD:
			if r := xi + yi; (r > xi) == (yi > 0) {
				return r, true
			}
		case token.SUB:
			if r := xi - yi; (r < xi) == (yi > 0) {
				return r, true
			}
		case token.MUL:
			if yi == 0 {
				return int64(0), true
			}
			if r := xi * yi; r/yi == xi && !(yi == -1 && xi == math.MinInt64) {
				return r, true
			}
		case token.QUO:
			if yi != 0 && !(yi == -1 && xi == math.MinInt64) {
				return xi / yi, true
			}
		case token.REM:
			if yi != 0 {
				return xi % yi, true
			}
		case token.SHL:
			if yi >= 0 && yi < 63 {
				if r := xi << uint(yi); r>>uint(yi) == xi {
					return r, true
				}
			}
		case token.SHR:
			if yi >= 0 && yi < 64 {
				return xi >> uint(yi), true
			}
		case token.OR:
			return xi | yi, true
		case token.AND:
			return xi & yi, true
		case token.XOR:
			return xi ^ yi, true
		}
		return nil, false
	}
	xf, okx := toFloat(x)
	yf, oky := toFloat(y)
	if !okx || !oky {
		return nil, false
	}
	switch op {
	case token.ADD:
		return xf + yf, true
	case token.SUB:
		return xf - yf, true
	case token.MUL:
		return xf * yf, true
	case token.QUO:
		if yf != 0 {
			return xf / yf, true
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func memberFromValue(v any) decl.Member {
	switch x := v.(type) {
	case string:
		return decl.String(x)
	case int64:
		return decl.Int(x)
	case float64:
		return decl.Number(x)
	}
	return decl.Null()
}

func primitiveOf(goType string) (decl.Primitive, bool) {
	switch goType {
	case "string":
		return decl.PrimitiveString, true
	case "bool":
		return decl.PrimitiveBoolean, true
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"byte", "rune", "float32", "float64":
		return decl.PrimitiveNumber, true
	}
	return "", false
}

func docText(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	return strings.TrimSpace(cg.Text())
}

func hasDirective(cg *ast.CommentGroup, directive string) bool {
	if cg == nil {
		return false
	}
	for _, c := range cg.List {
		if strings.TrimSpace(c.Text) == directive {
			return true
		}
	}
	return false
}
