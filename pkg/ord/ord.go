// Package ord provides helpers for working with ORD source artifacts.
//
// An artifact is an immutable blob of ORD source text: the candidate
// circuit description under evaluation. Artifacts come out of the generator
// collaborator (extracted from a fenced code block in free-form model
// output) or out of the layout repair engine; every transformation here
// returns a new string and never mutates shared state.
package ord

import (
	"regexp"
	"strings"
)

// VersionHeader is the canonical first line of an ORD source file.
const VersionHeader = "# -*- version: ord2 -*-"

var (
	fenceORDRe    = regexp.MustCompile("(?s)```ord\\s*\\n(.*?)```")
	fencePyRe     = regexp.MustCompile("(?s)```python\\s*\\n(.*?)```")
	fencePlainRe  = regexp.MustCompile("(?s)```\\s*\\n(.*?)```")
	versionRe     = regexp.MustCompile(`(?i)^#.*version.*ord`)
	paramDeclRe   = regexp.MustCompile(`^(\s*\w+\s*=\s*Parameter\(\s*)([^,\)]+)(\s*\))(\s*(#.*)?)$`)
	routingImpRe  = regexp.MustCompile(`(?m)^from ordec\.schematic\.routing import schematic_routing\n`)
	helperLineRes = []*regexp.Regexp{
		regexp.MustCompile(`^\s*helpers\.symbol_place_pins\(ctx\.root.*\)\s*$`),
		regexp.MustCompile(`^\s*helpers\.resolve_instances\(ctx\.root\)\s*$`),
		regexp.MustCompile(`^\s*ctx\.root\.outline\s*=\s*schematic_routing\(ctx\.root\)\s*$`),
		regexp.MustCompile(`^\s*return\s+ctx\.root\s*$`),
	}
)

// ExtractCode pulls ORD source out of a model reply.
//
// It prefers a block fenced as ```ord, then ```python, then an untagged
// block that visibly contains ORD markers (a cell declaration or an ordec
// import). Returns "" when no code block qualifies. Extracted code always
// carries the version header.
func ExtractCode(reply string) string {
	for _, re := range []*regexp.Regexp{fenceORDRe, fencePyRe} {
		if m := re.FindStringSubmatch(reply); m != nil {
			return EnsureVersionHeader(strings.TrimSpace(m[1]))
		}
	}

	if m := fencePlainRe.FindStringSubmatch(reply); m != nil {
		code := strings.TrimSpace(m[1])
		if strings.Contains(code, "cell ") || strings.Contains(code, "from ordec") {
			return EnsureVersionHeader(code)
		}
	}

	return ""
}

// EnsureVersionHeader prepends the canonical version header unless the
// source already starts with a version marker.
func EnsureVersionHeader(source string) string {
	if versionRe.MatchString(source) {
		return source
	}
	return VersionHeader + "\n" + source
}

// defaultForParameterType maps a Parameter type expression to a safe
// default literal.
func defaultForParameterType(typeName string) string {
	normalized := strings.TrimSpace(typeName)
	if i := strings.LastIndex(normalized, "."); i >= 0 {
		normalized = normalized[i+1:]
	}
	switch normalized {
	case "int":
		return "2"
	case "R":
		return "1u"
	case "float":
		return "1.0"
	case "bool":
		return "False"
	case "str":
		return `"x"`
	}
	return "1"
}

// EnsureParameterDefaults injects defaults for bare Parameter declarations.
//
// Generated cells frequently declare `w = Parameter(R)` without a default,
// which makes default instantiation fail before any rendering can happen.
// This rewrites such lines to `w = Parameter(R, default=1u)` (with a
// type-appropriate literal) and leaves everything else untouched.
func EnsureParameterDefaults(source string) string {
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		m := paramDeclRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		prefix, typeName, suffix, comment := m[1], m[2], m[3], m[4]
		lines[i] = prefix + strings.TrimSpace(typeName) + ", default=" +
			defaultForParameterType(typeName) + suffix + comment
	}
	return strings.Join(lines, "\n")
}

// StripHelpers removes explicit helper calls and returns from viewgen
// blocks, plus the routing import they require.
//
// The generator is instructed to emit these lines so the real toolchain
// resolves pins and routing, but they are boilerplate from the user's point
// of view. Stripping is cosmetic: callers must re-validate the stripped
// source and fall back to the original if it no longer renders.
func StripHelpers(source string) string {
	var kept []string
	for _, line := range strings.Split(source, "\n") {
		stripped := false
		for _, re := range helperLineRes {
			if re.MatchString(line) {
				stripped = true
				break
			}
		}
		if !stripped {
			kept = append(kept, line)
		}
	}
	return routingImpRe.ReplaceAllString(strings.Join(kept, "\n"), "")
}
