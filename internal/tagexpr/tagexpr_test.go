package tagexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tags(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func TestCompileEvaluates(t *testing.T) {
	tests := []struct {
		name string
		expr string
		tags map[string]struct{}
		want bool
	}{
		{name: "present tag", expr: "a", tags: tags("a"), want: true},
		{name: "absent tag", expr: "a", tags: tags("b"), want: false},
		{name: "empty set", expr: "a", tags: tags(), want: false},
		{name: "and both present", expr: "a & b", tags: tags("a", "b"), want: true},
		{name: "and one missing", expr: "a & b", tags: tags("a"), want: false},
		{name: "or one present", expr: "a | b", tags: tags("b"), want: true},
		{name: "or none present", expr: "a | b", tags: tags("c"), want: false},
		{name: "not absent", expr: "!a", tags: tags(), want: true},
		{name: "not present", expr: "!a", tags: tags("a"), want: false},
		{name: "const true", expr: "1", tags: tags(), want: true},
		{name: "const false", expr: "0", tags: tags(), want: false},
		{name: "and not, only a", expr: "a & !b", tags: tags("a"), want: true},
		{name: "and not, both", expr: "a & !b", tags: tags("a", "b"), want: false},
		{name: "and not, empty", expr: "a & !b", tags: tags(), want: false},
		{name: "precedence not over and", expr: "!a & b", tags: tags("b"), want: true},
		{name: "precedence and over or", expr: "a | b & c", tags: tags("a"), want: true},
		{name: "precedence and over or rhs", expr: "a | b & c", tags: tags("b"), want: false},
		{name: "parens override", expr: "(a | b) & c", tags: tags("a"), want: false},
		{name: "parens override satisfied", expr: "(a | b) & c", tags: tags("b", "c"), want: true},
		{name: "quoted tag", expr: `"web server"`, tags: tags("web server"), want: true},
		{name: "quoted escape", expr: `"a\"b"`, tags: tags(`a"b`), want: true},
		{name: "hyphenated tag", expr: "front-end", tags: tags("front-end"), want: true},
		{name: "underscore tag", expr: "_internal", tags: tags("_internal"), want: true},
		{name: "untagged default", expr: "untagged", tags: tags("untagged"), want: true},
		{name: "nested not", expr: "!!a", tags: tags("a"), want: true},
		{name: "whitespace tolerated", expr: "  a  &\t!b ", tags: tags("a"), want: true},
		{name: "chained and", expr: "a & b & c", tags: tags("a", "b", "c"), want: true},
		{name: "chained or", expr: "a | b | c", tags: tags("c"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f(tt.tags))
		})
	}
}

func TestCompileSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		marked string
	}{
		{name: "empty", expr: "", marked: `parsing tag expression at "@@@": @@@`},
		{name: "dangling and", expr: "a &", marked: `parsing tag expression at "@@@": a &@@@`},
		{name: "leading and", expr: "& a", marked: `parsing tag expression at "@@@": @@@& a`},
		{name: "unbalanced paren", expr: "(a | b", marked: `parsing tag expression at "@@@": (a | b@@@`},
		{name: "stray close paren", expr: "a)", marked: `parsing tag expression at "@@@": a@@@)`},
		{name: "adjacent terms", expr: "a b", marked: `parsing tag expression at "@@@": a @@@b`},
		{name: "bad character", expr: "a & $b", marked: `parsing tag expression at "@@@": a & @@@$b`},
		{name: "unterminated quote", expr: `"abc`, marked: `parsing tag expression at "@@@": "abc@@@`},
		{name: "digit run", expr: "01", marked: `parsing tag expression at "@@@": 0@@@1`},
		{name: "bare not", expr: "!", marked: `parsing tag expression at "@@@": !@@@`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			require.Error(t, err)

			var serr *SyntaxError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.marked, err.Error())
		})
	}
}

func TestRightAssociativity(t *testing.T) {
	// A right associative chain groups as a & (b & c); the truth table does
	// not change, but each operand must still evaluate independently.
	f, err := Compile("a & b & !c | d")
	require.NoError(t, err)

	assert.True(t, f(tags("a", "b")))
	assert.False(t, f(tags("a", "b", "c")))
	assert.True(t, f(tags("a", "b", "c", "d")))
	assert.True(t, f(tags("d")))
}
