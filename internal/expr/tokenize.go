package expr

import (
	"fmt"
	"regexp"
)

type rule struct {
	re  *regexp.Regexp
	typ TokenType // ignored for the whitespace rule
	ws  bool
}

// rules are tried in declaration order against the remaining input;
// the first prefix match wins. This mirrors the rule table in the
// original tokenizer exactly, including its ordering.
var rules = []rule{
	{re: regexp.MustCompile(`^\s+`), ws: true},
	{re: regexp.MustCompile(`^\+`), typ: TokPlus},
	{re: regexp.MustCompile(`^-`), typ: TokMinus},
	{re: regexp.MustCompile(`^\*`), typ: TokMul},
	{re: regexp.MustCompile(`^/`), typ: TokDiv},
	{re: regexp.MustCompile(`^\(`), typ: TokLParen},
	{re: regexp.MustCompile(`^\)`), typ: TokRParen},
	{re: regexp.MustCompile(`^0[xX][0-9a-fA-F]+`), typ: TokHex},
	{re: regexp.MustCompile(`^[0-9]+`), typ: TokDec},
	{re: regexp.MustCompile(`^\$[a-z0-9]+`), typ: TokReg},
	{re: regexp.MustCompile(`^==`), typ: TokEq},
	{re: regexp.MustCompile(`^!=`), typ: TokNeq},
	{re: regexp.MustCompile(`^&&`), typ: TokAnd},
}

// tokenize lexes s into a flat token stream, then applies the unary
// disambiguation pre-pass.
func tokenize(s string) ([]Token, error) {
	var toks []Token
	for len(s) > 0 {
		matched := false
		for _, r := range rules {
			loc := r.re.FindStringIndex(s)
			if loc == nil || loc[0] != 0 {
				continue
			}
			lexeme := s[:loc[1]]
			if !r.ws {
				if len(lexeme) > maxTokenLexeme {
					lexeme = lexeme[:maxTokenLexeme]
				}
				toks = append(toks, Token{Type: r.typ, Lexeme: lexeme})
			}
			s = s[loc[1]:]
			matched = true
			break
		}
		if !matched {
			return nil, fmt.Errorf("expr: no rule matches %q", s)
		}
	}
	disambiguate(toks)
	return toks, nil
}

// disambiguate rewrites a single-pass: a +/-/* token is unary (POS/NEG/
// DEREF) unless it directly follows a ')', a number, or a register —
// in which case it is binary and left untouched.
func disambiguate(toks []Token) {
	for i := range toks {
		switch toks[i].Type {
		case TokPlus, TokMinus, TokMul:
		default:
			continue
		}
		isBinaryHere := i > 0 && isBinaryContext(toks[i-1].Type)
		if isBinaryHere {
			continue
		}
		switch toks[i].Type {
		case TokPlus:
			toks[i].Type = TokPos
		case TokMinus:
			toks[i].Type = TokNeg
		case TokMul:
			toks[i].Type = TokDeref
		}
	}
}

func isBinaryContext(prev TokenType) bool {
	return prev == TokRParen || prev == TokDec || prev == TokHex || prev == TokReg
}
