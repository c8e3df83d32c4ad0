// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reqctx is the read-only request-context facade: it materializes
// typed fields from a host request (or a test fixture) without ever
// mutating the request itself (spec §4.1).
package reqctx

import "strconv"

// Kind discriminates which variant a Value carries.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindNumber
	KindString
	KindIP
	KindList
)

// Value is the typed result of resolving one RequestField or leaf operand.
// The truthiness table in §4.4 is implemented by Truthy.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	IP     string
	List   []string
}

// None is the absent value.
var None = Value{Kind: KindNone}

// NewBool, NewNumber, NewString, NewIP, and NewList construct typed values.
func NewBool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func NewNumber(n float64) Value  { return Value{Kind: KindNumber, Number: n} }
func NewString(s string) Value   { return Value{Kind: KindString, Str: s} }
func NewIP(ip string) Value      { return Value{Kind: KindIP, IP: ip} }
func NewList(l []string) Value   { return Value{Kind: KindList, List: l} }

// Truthy implements the truthiness table of §4.4: None->false, Bool(b)->b,
// Number(n)->n!=0, String(s)->non-empty, Ip->true, List->non-empty.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number != 0
	case KindString:
		return v.Str != ""
	case KindIP:
		return true
	case KindList:
		return len(v.List) > 0
	default:
		return false
	}
}

// String renders a Value for logging and for string-typed condition
// operators, never relying on a source-language debug-print format (§9).
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Number)
	case KindString:
		return v.Str
	case KindIP:
		return v.IP
	case KindList:
		out := ""
		for i, s := range v.List {
			if i > 0 {
				out += ","
			}
			out += s
		}
		return out
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
