package model

import (
	"fmt"
	"math/big"
	"strings"
)

// Lang selects the language of doc texts and unit titles.
type Lang string

const (
	LangEN Lang = "en"
	LangDE Lang = "de"
)

// ParseLang accepts "en" and "de".
func ParseLang(s string) (Lang, error) {
	switch Lang(s) {
	case LangEN, LangDE:
		return Lang(s), nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Unit is a physical unit an element value can be annotated with.
type Unit struct {
	Name   string
	Symbol string
	Title  map[Lang]string
	// Binary units take Ki/Mi/Gi prefixes in addition to the SI ones.
	Binary bool
}

func (u *Unit) TitleIn(lang Lang) string {
	if t, ok := u.Title[lang]; ok {
		return t
	}
	return u.Title[LangEN]
}

func unit(name, symbol, en, de string) *Unit {
	return &Unit{Name: name, Symbol: symbol, Title: map[Lang]string{LangEN: en, LangDE: de}}
}

var units = func() map[string]*Unit {
	list := []*Unit{
		unit("Second", "s", "second", "Sekunde"),
		unit("Minute", "min", "minute", "Minute"),
		unit("Hour", "h", "hour", "Stunde"),
		unit("Day", "d", "day", "Tag"),
		unit("Hertz", "Hz", "hertz", "Hertz"),
		unit("Volt", "V", "volt", "Volt"),
		unit("Ampere", "A", "ampere", "Ampere"),
		unit("Watt", "W", "watt", "Watt"),
		unit("Watt Hour", "Wh", "watt hour", "Wattstunde"),
		unit("Ohm", "Ω", "ohm", "Ohm"),
		unit("Farad", "F", "farad", "Farad"),
		unit("Henry", "H", "henry", "Henry"),
		unit("Degree Celsius", "°C", "degree Celsius", "Grad Celsius"),
		unit("Kelvin", "K", "kelvin", "Kelvin"),
		unit("Meter", "m", "meter", "Meter"),
		unit("Meter Per Second", "m/s", "meter per second", "Meter pro Sekunde"),
		unit("Standard Gravity", "g₀", "standard gravity", "Normfallbeschleunigung"),
		unit("Gram", "g", "gram", "Gramm"),
		unit("Newton", "N", "newton", "Newton"),
		unit("Pascal", "Pa", "pascal", "Pascal"),
		unit("Lux", "lx", "lux", "Lux"),
		unit("Degree", "°", "degree", "Grad"),
		unit("Degree Per Second", "°/s", "degree per second", "Grad pro Sekunde"),
		unit("Radian", "rad", "radian", "Radiant"),
		unit("Tesla", "T", "tesla", "Tesla"),
		unit("Gauss", "G", "gauss", "Gauß"),
		unit("Decibel", "dB", "decibel", "Dezibel"),
		unit("Percent", "%", "percent", "Prozent"),
		unit("Percent Relative Humidity", "%RH", "percent relative humidity", "Prozent relative Luftfeuchtigkeit"),
		unit("Parts Per Million", "ppm", "parts per million", "Anteile pro Million"),
		unit("Revolutions Per Minute", "RPM", "revolutions per minute", "Umdrehungen pro Minute"),
		unit("Steps Per Second", "steps/s", "steps per second", "Schritte pro Sekunde"),
		unit("Beats Per Minute", "bpm", "beats per minute", "Schläge pro Minute"),
		unit("Byte", "B", "byte", "Byte"),
		unit("Bit", "bit", "bit", "Bit"),
	}
	m := make(map[string]*Unit, len(list))
	for _, u := range list {
		if u.Name == "Byte" || u.Name == "Bit" {
			u.Binary = true
		}
		m[u.Name] = u
	}
	return m
}()

// LookupUnit resolves a unit by its definition name ("Degree Celsius").
func LookupUnit(name string) (*Unit, bool) {
	u, ok := units[name]
	return u, ok
}

// Scale multiplies a raw wire value into the unit of the element. A dynamic
// scale is only known at runtime.
type Scale struct {
	Num, Den int64
	Dynamic  bool
}

// IdentityScale is 1/1.
var IdentityScale = Scale{Num: 1, Den: 1}

func (s Scale) IsIdentity() bool { return !s.Dynamic && s.Num == s.Den }

func (s Scale) Rat() *big.Rat {
	if s.Dynamic || s.Den == 0 {
		return big.NewRat(1, 1)
	}
	return big.NewRat(s.Num, s.Den)
}

func (s Scale) String() string {
	if s.Dynamic {
		return "dynamic"
	}
	if s.Den == 1 {
		return fmt.Sprintf("%d", s.Num)
	}
	return fmt.Sprintf("%d/%d", s.Num, s.Den)
}

type prefix struct {
	factor *big.Rat
	symbol string
}

var siPrefixes = []prefix{
	{big.NewRat(1, 1000000000), "n"},
	{big.NewRat(1, 1000000), "µ"},
	{big.NewRat(1, 1000), "m"},
	{big.NewRat(1000, 1), "k"},
	{big.NewRat(1000000, 1), "M"},
	{big.NewRat(1000000000, 1), "G"},
}

var binaryPrefixes = []prefix{
	{big.NewRat(1<<10, 1), "Ki"},
	{big.NewRat(1<<20, 1), "Mi"},
	{big.NewRat(1<<30, 1), "Gi"},
}

// FormatUnit renders a scale and unit as it appears in docs: a scale that
// matches a prefix collapses into it ("1/1000 Second" -> "ms"), any other
// scale is written in front of the symbol ("1/10 °C").
func FormatUnit(scale Scale, u *Unit) string {
	if u == nil {
		if scale.IsIdentity() || scale.Dynamic {
			return ""
		}
		return scale.String()
	}
	if scale.IsIdentity() || scale.Dynamic {
		return u.Symbol
	}
	r := scale.Rat()
	candidates := siPrefixes
	if u.Binary {
		candidates = append(append([]prefix(nil), binaryPrefixes...), siPrefixes...)
	}
	for _, p := range candidates {
		if p.factor.Cmp(r) == 0 {
			return p.symbol + u.Symbol
		}
	}
	return scale.String() + " " + u.Symbol
}

// FormatValue renders a raw wire value in physical units, e.g. 200 with a
// 1/1000 Second scale gives "0.2 s". German output uses a decimal comma.
func FormatValue(raw *big.Rat, scale Scale, u *Unit, lang Lang) string {
	v := new(big.Rat).Mul(raw, scale.Rat())
	s := ratString(v)
	if lang == LangDE {
		s = strings.Replace(s, ".", ",", 1)
	}
	if u == nil {
		return s
	}
	return s + " " + u.Symbol
}

// ratString prints r exactly when it has a finite decimal expansion and with
// six decimals otherwise, dropping trailing zeros.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	digits := 6
	den := new(big.Int).Set(r.Denom())
	two, five := big.NewInt(2), big.NewInt(5)
	n2, n5 := 0, 0
	m := new(big.Int)
	for m.Mod(den, two).Sign() == 0 {
		den.Div(den, two)
		n2++
	}
	for m.Mod(den, five).Sign() == 0 {
		den.Div(den, five)
		n5++
	}
	if den.Cmp(big.NewInt(1)) == 0 {
		digits = max(n2, n5)
	}
	s := r.FloatString(digits)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
