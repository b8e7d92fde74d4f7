// Package airtext renders and re-parses AIR functions as text, the
// way a backend dumps its IR for -emit-intermediate / debugging and
// round-trip testing. Grounded on kanso/grammar: a participle-based
// grammar with its own stateful lexer, the same way the teacher's
// source-language grammar is built, retargeted at AIR's much smaller
// instruction/operand surface instead of module/struct/expr syntax.
package airtext

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenizes AIR text. Order matters: VReg must be tried before
// Reg (both start with "%"), Number before Ident (hex words start
// with digits, never letters), and Keyword before Ident so the
// structural words (module, data, function, endfunction, ...) are
// never taken for a label, mnemonic or operand.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `#[^\n]*`, nil},
		{"String", `"(\\.|[^"\\])*"`, nil},
		{"VReg", `%v[0-9]+`, nil},
		{"Reg", `%[a-zA-Z][a-zA-Z0-9]*`, nil},
		{"Number", `0x[0-9a-fA-F]+|-?[0-9]+`, nil},
		{"Keyword", `(module|enddata|data|endfunction|function|frame|callee|string|bytes|word)\b`, nil},
		{"Ident", `[a-zA-Z_.][a-zA-Z0-9_.]*`, nil},
		{"Punct", `[(),:\[\]$]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
