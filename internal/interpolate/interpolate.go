/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package interpolate implements safe placeholder substitution in the style of
// Python's string.Template.safe_substitute: "$name" and "${name}" are replaced
// from an argument map, literal "$$" collapses to "$", and any placeholder with
// no matching argument is left in the output verbatim rather than erroring.
//
// Go's text/template is not a fit here: its "{{ }}" syntax and strict
// undefined-name behavior can't reproduce safe_substitute without building an
// equivalent scanner on top of it anyway, so this package is a small
// hand-written scanner instead of a templating-library wrapper.
package interpolate

import "strings"

// Interpolate substitutes "$name" and "${name}" placeholders in template using
// args. A nil args map leaves the template unchanged. Placeholders with no
// entry in args are left in the output exactly as written, including their
// delimiters. When args is non-nil, "$$" collapses to a literal "$".
func Interpolate(template string, args map[string]string) (string, error) {
	if args == nil {
		return template, nil
	}

	var out strings.Builder
	out.Grow(len(template))

	i := 0
	for i < len(template) {
		c := template[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}

		// c == '$'
		if i+1 >= len(template) {
			out.WriteByte(c)
			i++
			continue
		}

		switch next := template[i+1]; {
		case next == '$':
			out.WriteByte('$')
			i += 2
		case next == '{':
			name, width, ok := scanBraced(template[i:])
			if !ok {
				out.WriteByte(c)
				i++
				continue
			}
			if value, found := args[name]; found {
				out.WriteString(value)
			} else {
				out.WriteString(template[i : i+width])
			}
			i += width
		case isIdentStart(next):
			name, width := scanIdentifier(template[i+1:])
			if value, found := args[name]; found {
				out.WriteString(value)
			} else {
				out.WriteString(template[i : i+1+width])
			}
			i += 1 + width
		default:
			// Lone '$' not followed by a valid placeholder start: literal.
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), nil
}

// scanBraced parses a "${identifier}" form starting at s[0] == '$'. It returns
// the identifier name and the total width of the placeholder (including the
// delimiters); ok is false if s does not contain a well-formed "${...}".
func scanBraced(s string) (name string, width int, ok bool) {
	// s[0] == '$', s[1] == '{'
	end := strings.IndexByte(s[2:], '}')
	if end < 0 {
		return "", 0, false
	}
	name = s[2 : 2+end]
	if name == "" || !isValidIdentifier(name) {
		return "", 0, false
	}
	return name, 2 + end + 1, true
}

// scanIdentifier parses a bare "$identifier" form given the text after the '$'.
// It returns the identifier name and its length.
func scanIdentifier(s string) (name string, width int) {
	n := 0
	for n < len(s) && isIdentPart(s[n]) {
		n++
	}
	return s[:n], n
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isValidIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}
