package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// shorthandToken matches, leftmost first, one of:
//
//	"literal"                         copied as is
//	field:"v" field!:"v" field~:"re"  quoted terms (groups 1-4)
//	field:>10 field:<=3 field:=2      numeric terms (groups 5-7)
//	field:true field:false            bool terms (groups 8-9)
//	AND OR NOT                        keywords (group 10)
//
// String literals are consumed whole, so nothing inside them is rewritten.
var shorthandToken = regexp.MustCompile(
	`"(?:[^"\\]|\\.)*"` +
		`|\b([a-z_]+)(!?)(~?):"([^"]*)"` +
		`|\b([a-z_]+):(>=|<=|>|<|=)(\d+)` +
		`|\b([a-z_]+):(true|false)\b` +
		`|\b(AND|OR|NOT)\b`)

// IsShorthand reports whether expression uses the field:"value" syntax
func IsShorthand(expression string) bool {
	for _, m := range shorthandToken.FindAllStringSubmatchIndex(expression, -1) {
		if m[2] >= 0 || m[10] >= 0 || m[16] >= 0 {
			return true
		}
	}
	return false
}

// ConvertShorthand rewrites the field:"value" syntax into an expr expression.
//
//	role:"owner" AND email!:"bob@example.com"
//	  => lower(role) == "owner" and not (lower(email) == "bob@example.com")
//	sender~:"@spam\."   => sender matches "@spam\\."
//	member_count:>100  => member_count > 100
//
// String comparisons with : are case-insensitive, ~: is a case-sensitive regexp.
func ConvertShorthand(expression string) string {
	if strings.TrimSpace(expression) == "" {
		return ""
	}

	var sb strings.Builder
	last := 0
	for _, m := range shorthandToken.FindAllStringSubmatchIndex(expression, -1) {
		sb.WriteString(expression[last:m[0]])
		last = m[1]

		group := func(n int) string {
			if m[2*n] < 0 {
				return ""
			}
			return expression[m[2*n]:m[2*n+1]]
		}

		switch {
		case m[2] >= 0:
			sb.WriteString(convertQuoted(group(1), group(2) == "!", group(3) == "~", group(4)))
		case m[10] >= 0:
			op := group(6)
			if op == "=" {
				op = "=="
			}
			fmt.Fprintf(&sb, "%s %s %s", group(5), op, group(7))
		case m[16] >= 0:
			fmt.Fprintf(&sb, "%s == %s", group(8), group(9))
		case m[20] >= 0:
			sb.WriteString(strings.ToLower(group(10)))
		default:
			sb.WriteString(expression[m[0]:m[1]])
		}
	}
	sb.WriteString(expression[last:])

	return sb.String()
}

func convertQuoted(field string, negate, regex bool, value string) string {
	var converted string
	if regex {
		converted = fmt.Sprintf("%s matches %q", field, value)
	} else {
		converted = fmt.Sprintf("lower(%s) == %q", field, strings.ToLower(value))
	}
	if negate {
		return "not (" + converted + ")"
	}
	return converted
}
