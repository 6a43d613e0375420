package format

import (
	"fmt"

	"github.com/spf13/pflag"
)

// WrapRule decides after which column of a row a line break is written.
// Both rules exist as historical device output formats.
type WrapRule int

const (
	// WrapModulo breaks after columns every-1, 2*every-1, ...
	WrapModulo WrapRule = iota
	// WrapLegacy breaks only after the column whose index equals every,
	// i.e. after the (every+1)-th element of a row.
	WrapLegacy
)

var _ pflag.Value = (*WrapRule)(nil)

var wrapRuleNames = map[WrapRule]string{
	WrapModulo: "modulo",
	WrapLegacy: "legacy",
}

func ParseWrapRule(s string) (WrapRule, error) {
	for rule, name := range wrapRuleNames {
		if name == s {
			return rule, nil
		}
	}

	return WrapModulo, fmt.Errorf("format: unknown wrap rule %q (want modulo or legacy)", s)
}

func (r WrapRule) String() string {
	if name, ok := wrapRuleNames[r]; ok {
		return name
	}

	return fmt.Sprintf("WrapRule(%d)", int(r))
}

// Set implements pflag.Value.
func (r *WrapRule) Set(s string) error {
	rule, err := ParseWrapRule(s)
	if err != nil {
		return err
	}

	*r = rule

	return nil
}

// Type implements pflag.Value.
func (*WrapRule) Type() string {
	return "wrap"
}

// BreakAfter reports whether a newline follows column c of a row.
// every <= 0 disables wrapping.
func (r WrapRule) BreakAfter(c, every int) bool {
	if every <= 0 {
		return false
	}

	switch r {
	case WrapLegacy:
		return c == every
	default:
		return c%every == every-1
	}
}
