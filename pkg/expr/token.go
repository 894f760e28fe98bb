package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString
	tokenBool
	tokenNull
	tokenReference
	tokenOperator
	tokenAnd
	tokenOr
	tokenNot
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind   tokenKind
	text   string
	number float64
}

const referencePrefix = "{context."

func tokenize(input string) ([]token, error) {
	var tokens []token

	i := 0
	for i < len(input) {
		c := input[i]

		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLeftParen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRightParen, text: ")"})
			i++
		case c == '{':
			end := strings.IndexByte(input[i:], '}')
			if end < 0 {
				return nil, errors.New("unterminated context reference")
			}

			ref := input[i : i+end+1]
			if !strings.HasPrefix(ref, referencePrefix) {
				return nil, fmt.Errorf("invalid reference %q, only context.* is addressable", ref)
			}

			path := ref[len(referencePrefix) : len(ref)-1]
			if path == "" {
				return nil, errors.New("empty context reference")
			}

			tokens = append(tokens, token{kind: tokenReference, text: path})
			i += end + 1
		case c == '\'' || c == '"':
			end := strings.IndexByte(input[i+1:], c)
			if end < 0 {
				return nil, errors.New("unterminated string literal")
			}

			tokens = append(tokens, token{kind: tokenString, text: input[i+1 : i+1+end]})
			i += end + 2
		case strings.HasPrefix(input[i:], "&&"):
			tokens = append(tokens, token{kind: tokenAnd, text: "&&"})
			i += 2
		case strings.HasPrefix(input[i:], "||"):
			tokens = append(tokens, token{kind: tokenOr, text: "||"})
			i += 2
		case strings.HasPrefix(input[i:], "==="), strings.HasPrefix(input[i:], "!=="):
			tokens = append(tokens, token{kind: tokenOperator, text: input[i : i+3]})
			i += 3
		case strings.HasPrefix(input[i:], "=="), strings.HasPrefix(input[i:], "!="),
			strings.HasPrefix(input[i:], ">="), strings.HasPrefix(input[i:], "<="):
			tokens = append(tokens, token{kind: tokenOperator, text: input[i : i+2]})
			i += 2
		case c == '>' || c == '<':
			tokens = append(tokens, token{kind: tokenOperator, text: string(c)})
			i++
		case c == '!':
			tokens = append(tokens, token{kind: tokenNot, text: "!"})
			i++
		case c == '-' || unicode.IsDigit(rune(c)):
			start := i
			i++

			for i < len(input) && (unicode.IsDigit(rune(input[i])) || input[i] == '.') {
				i++
			}

			number, err := strconv.ParseFloat(input[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q: %w", input[start:i], err)
			}

			tokens = append(tokens, token{kind: tokenNumber, text: input[start:i], number: number})
		case unicode.IsLetter(rune(c)):
			start := i
			for i < len(input) && unicode.IsLetter(rune(input[i])) {
				i++
			}

			word := input[start:i]
			switch word {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, text: word})
			case "null":
				tokens = append(tokens, token{kind: tokenNull, text: word})
			default:
				return nil, fmt.Errorf("unknown identifier %q", word)
			}
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}

	return tokens, nil
}

// asNumber converts numeric Go types to float64 without string coercion.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// coerceNumber additionally parses numeric strings and maps booleans to
// 0/1, used only by loose equality.
func coerceNumber(value any) (float64, bool) {
	if num, ok := asNumber(value); ok {
		return num, true
	}

	switch v := value.(type) {
	case string:
		num, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return num, true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}
