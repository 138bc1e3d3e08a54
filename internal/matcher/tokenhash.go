package matcher

import (
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// TokenHasher maps a token to the value folded into a window fingerprint.
type TokenHasher func(token string) uint64

// keywords keep their own identity in ShapeHash; every other identifier
// collapses into a single class
var keywords = map[string]struct{}{
	// control flow
	"if": {}, "else": {}, "elif": {}, "for": {}, "while": {}, "do": {}, "switch": {}, "case": {},
	"break": {}, "continue": {}, "return": {}, "try": {}, "catch": {}, "except": {}, "finally": {},
	"throw": {}, "throws": {}, "raise": {}, "yield": {}, "goto": {}, "default": {}, "in": {},
	"not": {}, "and": {}, "or": {}, "is": {}, "pass": {}, "with": {}, "as": {}, "from": {},
	"lambda": {}, "del": {}, "global": {}, "nonlocal": {}, "assert": {}, "begin": {}, "end": {},
	"then": {}, "unless": {}, "until": {}, "elsif": {}, "rescue": {}, "ensure": {}, "module": {},
	// declarations and modifiers
	"def": {}, "class": {}, "interface": {}, "extends": {}, "implements": {}, "public": {},
	"private": {}, "protected": {}, "static": {}, "final": {}, "abstract": {}, "synchronized": {},
	"volatile": {}, "transient": {}, "native": {}, "strictfp": {}, "package": {}, "import": {},
	"include": {}, "define": {}, "typedef": {}, "struct": {}, "union": {}, "enum": {}, "extern": {},
	"auto": {}, "register": {}, "const": {}, "inline": {}, "virtual": {}, "explicit": {},
	"friend": {}, "namespace": {}, "template": {}, "typename": {}, "using": {}, "operator": {},
	"let": {}, "var": {}, "function": {}, "async": {}, "await": {}, "export": {}, "type": {},
	"new": {}, "delete": {}, "this": {}, "self": {}, "super": {}, "instanceof": {}, "typeof": {},
	"sizeof": {},
	// types and literals
	"void": {}, "int": {}, "long": {}, "short": {}, "float": {}, "double": {}, "boolean": {},
	"bool": {}, "char": {}, "string": {}, "byte": {}, "unsigned": {}, "signed": {}, "null": {},
	"nil": {}, "none": {}, "true": {}, "false": {}, "undefined": {},
}

const (
	classIdentifier = "\x00ident"
	classNumber     = "\x00number"
)

// ShapeHash hashes the lexical shape of a token: keywords, operators and
// punctuation by their text, identifiers and numeric literals by class.
// Windows that differ only by consistent renaming share a fingerprint.
func ShapeHash(token string) uint64 {
	return xxhash.Sum64String(shape(token))
}

// ExactHash hashes the token text itself.
func ExactHash(token string) uint64 {
	return xxhash.Sum64String(token)
}

func shape(token string) string {
	r, _ := utf8.DecodeRuneInString(token)
	switch {
	case token == "":
		return token
	case unicode.IsDigit(r):
		return classNumber
	case unicode.IsLetter(r) || r == '_':
		if _, ok := keywords[token]; ok {
			return token
		}
		return classIdentifier
	default:
		return token
	}
}
