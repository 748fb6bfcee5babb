// Package format renders model values as literals of a target language.
package format

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/brickgen/brickgen/model"
)

// ValueFormatter writes literals for one target language.
type ValueFormatter interface {
	Bool(v bool) string
	Integer(t model.Type, v *big.Int) string
	Float(v *big.Rat) string
	Char(c string) string
	String(s string) string
	List(t model.Type, items []string) string
}

var formatters = map[string]ValueFormatter{
	"c":          cFormatter{},
	"go":         goFormatter{},
	"python":     pythonFormatter{},
	"rust":       rustFormatter{},
	"typescript": typescriptFormatter{},
	"csharp":     csharpFormatter{},
	"json":       jsonFormatter{},
}

// For returns the formatter of lang.
func For(lang string) (ValueFormatter, error) {
	f, ok := formatters[lang]
	if !ok {
		return nil, fmt.Errorf("no value formatter for %q (supported: %s)", lang, strings.Join(Languages(), ", "))
	}
	return f, nil
}

// Languages lists the supported language tags.
func Languages() []string {
	out := make([]string, 0, len(formatters))
	for k := range formatters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Value formats a model value of type t: a bool, a one-character string for
// char, a string, a *big.Rat for numbers, or a []any of those.
func Value(f ValueFormatter, t model.Type, v any) (string, error) {
	if items, ok := v.([]any); ok {
		parts := make([]string, len(items))
		for i, it := range items {
			s, err := Value(f, t, it)
			if err != nil {
				return "", fmt.Errorf("item %d: %w", i, err)
			}
			parts[i] = s
		}
		return f.List(t, parts), nil
	}
	switch t {
	case model.Bool:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("expected bool, got %T", v)
		}
		return f.Bool(b), nil
	case model.Char:
		s, ok := v.(string)
		if !ok || len(s) != 1 {
			return "", fmt.Errorf("expected one character, got %v", v)
		}
		return f.Char(s), nil
	case model.String:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", v)
		}
		return f.String(s), nil
	}
	r, ok := v.(*big.Rat)
	if !ok {
		return "", fmt.Errorf("expected number, got %T", v)
	}
	if t == model.Float {
		return f.Float(r), nil
	}
	if !r.IsInt() {
		return "", fmt.Errorf("%s is not an integer", r.RatString())
	}
	return f.Integer(t, r.Num()), nil
}

// Constant formats the value of c, a constant of g.
func Constant(f ValueFormatter, g *model.ConstantGroup, c *model.Constant) string {
	switch g.Type() {
	case model.Bool:
		return f.Bool(c.Bool())
	case model.Char:
		return f.Char(c.Char)
	}
	return f.Integer(g.Type(), c.Value.Num())
}

// decimal prints r as the shortest float32 literal, always with a dot.
func decimal(r *big.Rat) string {
	v, _ := r.Float32()
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func cQuote(s string, quote byte) string {
	var b strings.Builder
	b.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == quote || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

func isMinInt64(t model.Type, v *big.Int) bool {
	return t == model.Int64 && v.IsInt64() && v.Int64() == -1<<63
}

type cFormatter struct{}

func (cFormatter) Bool(v bool) string { return strconv.FormatBool(v) }

func (cFormatter) Integer(t model.Type, v *big.Int) string {
	switch {
	case isMinInt64(t, v):
		return "(-9223372036854775807LL - 1)"
	case t == model.Int64:
		return v.String() + "LL"
	case t == model.Uint64:
		return v.String() + "ULL"
	case t == model.Uint32:
		return v.String() + "U"
	case t == model.Int32 && v.IsInt64() && v.Int64() == -1<<31:
		return "(-2147483647 - 1)"
	}
	return v.String()
}

func (cFormatter) Float(v *big.Rat) string { return decimal(v) + "f" }
func (cFormatter) Char(c string) string    { return cQuote(c, '\'') }
func (cFormatter) String(s string) string  { return cQuote(s, '"') }

func (cFormatter) List(_ model.Type, items []string) string {
	return "{" + strings.Join(items, ", ") + "}"
}

type goFormatter struct{}

func (goFormatter) Bool(v bool) string                      { return strconv.FormatBool(v) }
func (goFormatter) Integer(_ model.Type, v *big.Int) string { return v.String() }
func (goFormatter) Float(v *big.Rat) string                 { return decimal(v) }
func (goFormatter) Char(c string) string                    { return strconv.QuoteRune(rune(c[0])) }
func (goFormatter) String(s string) string                  { return strconv.Quote(s) }

func (goFormatter) List(t model.Type, items []string) string {
	return "[]" + GoType(t) + "{" + strings.Join(items, ", ") + "}"
}

type pythonFormatter struct{}

func (pythonFormatter) Bool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func (pythonFormatter) Integer(_ model.Type, v *big.Int) string { return v.String() }
func (pythonFormatter) Float(v *big.Rat) string                 { return decimal(v) }
func (pythonFormatter) Char(c string) string                    { return cQuote(c, '\'') }
func (pythonFormatter) String(s string) string                  { return cQuote(s, '\'') }

func (pythonFormatter) List(_ model.Type, items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

type rustFormatter struct{}

func (rustFormatter) Bool(v bool) string { return strconv.FormatBool(v) }

func (rustFormatter) Integer(t model.Type, v *big.Int) string {
	if isMinInt64(t, v) {
		return "i64::MIN"
	}
	return v.String()
}

func (rustFormatter) Float(v *big.Rat) string { return decimal(v) }
func (rustFormatter) Char(c string) string    { return cQuote(c, '\'') }
func (rustFormatter) String(s string) string  { return cQuote(s, '"') }

func (rustFormatter) List(_ model.Type, items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

type typescriptFormatter struct{}

func (typescriptFormatter) Bool(v bool) string { return strconv.FormatBool(v) }

// Integer writes 64 bit values as BigInt literals.
func (typescriptFormatter) Integer(t model.Type, v *big.Int) string {
	if t == model.Int64 || t == model.Uint64 {
		return v.String() + "n"
	}
	return v.String()
}

func (typescriptFormatter) Float(v *big.Rat) string { return decimal(v) }
func (typescriptFormatter) Char(c string) string    { return cQuote(c, '\'') }
func (typescriptFormatter) String(s string) string  { return cQuote(s, '\'') }

func (typescriptFormatter) List(_ model.Type, items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

type csharpFormatter struct{}

func (csharpFormatter) Bool(v bool) string { return strconv.FormatBool(v) }

func (csharpFormatter) Integer(t model.Type, v *big.Int) string {
	switch {
	case isMinInt64(t, v):
		return "long.MinValue"
	case t == model.Int64:
		return v.String() + "L"
	case t == model.Uint64:
		return v.String() + "UL"
	case t == model.Uint32:
		return v.String() + "U"
	}
	return v.String()
}

func (csharpFormatter) Float(v *big.Rat) string { return decimal(v) + "f" }
func (csharpFormatter) Char(c string) string    { return cQuote(c, '\'') }
func (csharpFormatter) String(s string) string  { return cQuote(s, '"') }

func (csharpFormatter) List(t model.Type, items []string) string {
	return "new " + CSharpType(t) + "[]{" + strings.Join(items, ", ") + "}"
}

type jsonFormatter struct{}

func (jsonFormatter) Bool(v bool) string                      { return strconv.FormatBool(v) }
func (jsonFormatter) Integer(_ model.Type, v *big.Int) string { return v.String() }
func (jsonFormatter) Float(v *big.Rat) string                 { return decimal(v) }
func (jsonFormatter) Char(c string) string                    { return strconv.Quote(c) }
func (jsonFormatter) String(s string) string                  { return strconv.Quote(s) }

func (jsonFormatter) List(_ model.Type, items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
