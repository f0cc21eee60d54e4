package classify

import (
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "aluminum soda can", "aluminum soda can"},
		{"double quoted", `"plastic water bottle"`, "plastic water bottle"},
		{"nested quotes and label", `"'Waste item: plastic bottle'"`, "plastic bottle"},
		{"single quoted label", "'Waste item: plastic bottle'", "plastic bottle"},
		{"label no colon", "waste item cardboard box", "cardboard box"},
		{"label upper case", "WASTE ITEM:   glass wine bottle", "glass wine bottle"},
		{"surrounding whitespace", "  \tpaper coffee cup \n", "paper coffee cup"},
		{"quoted with inner space", `"  blade  "`, "blade"},
		{"backticks", "`metal plate`", "metal plate"},
		{"curly quotes", "“action figure”", "action figure"},
		{"mixed quotes", `"plastic bottle'`, "plastic bottle"},
		{"mixed quotes reversed", `'plastic bottle"`, "plastic bottle"},
		{"curly and straight", "“paper bag'", "paper bag"},
		{"leading quote only kept", `"plastic bottle`, `"plastic bottle`},
		{"trailing quote only kept", `plastic bottle'`, `plastic bottle'`},
		{"lone quote", `"`, `"`},
		{"only label", "Waste item:", ""},
		{"empty quotes", `""`, ""},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
		{"multi line", "plastic bottle\nIt is recyclable.", ""},
		{"too long", strings.Repeat("very ", 13) + "long item", ""},
		{"label mid string kept", "broken waste item: bin", "broken waste item: bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeMaxLength(t *testing.T) {
	exact := strings.Repeat("a", MaxNameLength)
	assert.Equal(t, exact, Sanitize(exact))
	assert.Equal(t, "", Sanitize(exact+"a"))

	// Length counts runes, not bytes.
	wide := strings.Repeat("ü", MaxNameLength)
	assert.Equal(t, wide, Sanitize(wide))
}

func TestSanitizeIdempotent(t *testing.T) {
	samples := []string{
		`"'Waste item: plastic bottle'"`,
		`"'"'bottle'"'"`,
		`' "Waste item: 'can'" '`,
		"waste item: waste item: jar",
		`"waste item: "foil""`,
		" “‘cup’” ",
		"line one\nline two",
		`'`,
		"",
	}
	for _, s := range samples {
		once := Sanitize(s)
		assert.Equal(t, once, Sanitize(once), "input %q", s)
	}

	f := func(s string) bool {
		once := Sanitize(s)
		return Sanitize(once) == once
	}
	assert.NoError(t, quick.Check(f, &quick.Config{MaxCount: 2000}))
}
