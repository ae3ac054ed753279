// Package repair applies mechanical layout edits to circuit source text.
//
// Repairs are purely textual: the engine never parses or executes the
// source, it locates declarations with the same surface patterns the
// language uses and rewrites them in place. Edits that cannot be anchored
// to a declaration are skipped rather than guessed, so applying a change
// set is always safe; the worst outcome is an unchanged source.
package repair

import (
	"fmt"
	"regexp"
	"strings"
)

// Change is a single layout edit targeting one named element. Position
// moves require both coordinates; the remaining fields are independent and
// a change may combine them.
type Change struct {
	ElementName  string `json:"element_name"`
	NewX         *int   `json:"new_pos_x,omitempty"`
	NewY         *int   `json:"new_pos_y,omitempty"`
	NewAlignment string `json:"new_alignment,omitempty"`
	DisableRoute bool   `json:"disable_route,omitempty"`
}

// Apply rewrites source according to the change set and returns the result.
// Changes are applied in order; later changes see the text produced by
// earlier ones. Route-disable insertions are idempotent.
func Apply(source string, changes []Change) string {
	for _, c := range changes {
		if c.ElementName == "" {
			continue
		}
		if c.NewX != nil && c.NewY != nil {
			source = applyPosition(source, c.ElementName, *c.NewX, *c.NewY)
		}
		if c.NewAlignment != "" {
			source = applyAlignment(source, c.ElementName, c.NewAlignment)
		}
		if c.DisableRoute {
			source = applyRouteDisable(source, c.ElementName)
		}
	}
	return source
}

var (
	inlinePosRe  = regexp.MustCompile(`\.pos\s*=\s*\(\s*-?\d+\s*,\s*-?\d+\s*\)`)
	blockPosRe   = regexp.MustCompile(`^(\s*)\.pos\s*=\s*\(\s*-?\d+\s*,\s*-?\d+\s*\)\s*$`)
	alignValueRe = regexp.MustCompile(`(\.align\s*=\s*Orientation\.)\w+`)
)

// inlineDeclRe matches the declaration line of name when it uses the
// parenthesised inline form, e.g. "Nmos m1(...)" or "port vdd(...)".
func inlineDeclRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*\w+\s+` + regexp.QuoteMeta(name) + `\s*\(`)
}

// blockDeclRe matches the header line of name's block form, e.g.
// "Nmos m_tail:".
func blockDeclRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`^(\s*)\w+\s+` + regexp.QuoteMeta(name) + `\s*:\s*$`)
}

// applyPosition rewrites an existing .pos assignment for the named element.
// A declaration without one is left alone: position edits replace
// coordinates, they never introduce layout the model did not write.
func applyPosition(source, name string, x, y int) string {
	replacement := fmt.Sprintf(".pos=(%d, %d)", x, y)
	lines := strings.Split(source, "\n")

	inline := inlineDeclRe(name)
	for i, line := range lines {
		if inline.MatchString(line) && inlinePosRe.MatchString(line) {
			lines[i] = inlinePosRe.ReplaceAllString(line, replacement)
			return strings.Join(lines, "\n")
		}
	}

	block := blockDeclRe(name)
	for i, line := range lines {
		m := block.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headerIndent := len(m[1])
		for j := i + 1; j < len(lines); j++ {
			body := lines[j]
			if strings.TrimSpace(body) == "" {
				continue
			}
			if indentOf(body) <= headerIndent {
				break
			}
			if bm := blockPosRe.FindStringSubmatch(body); bm != nil {
				lines[j] = bm[1] + fmt.Sprintf(".pos = (%d, %d)", x, y)
				return strings.Join(lines, "\n")
			}
		}
		break
	}

	return source
}

func applyAlignment(source, name, alignment string) string {
	lines := strings.Split(source, "\n")
	inline := inlineDeclRe(name)
	for i, line := range lines {
		if inline.MatchString(line) && alignValueRe.MatchString(line) {
			lines[i] = alignValueRe.ReplaceAllString(line, "${1}"+alignment)
			return strings.Join(lines, "\n")
		}
	}

	block := blockDeclRe(name)
	for i, line := range lines {
		m := block.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headerIndent := len(m[1])
		for j := i + 1; j < len(lines); j++ {
			body := lines[j]
			if strings.TrimSpace(body) == "" {
				continue
			}
			if indentOf(body) <= headerIndent {
				break
			}
			if alignValueRe.MatchString(body) {
				lines[j] = alignValueRe.ReplaceAllString(body, "${1}"+alignment)
				return strings.Join(lines, "\n")
			}
		}
		break
	}
	return strings.Join(lines, "\n")
}

// applyRouteDisable turns off automatic routing for an element. Ports use
// the reference form "name.ref.route = False" after their declaration;
// nets use "name.route = False". Anything else is left untouched.
func applyRouteDisable(source, name string) string {
	portStmt := name + ".ref.route = False"
	netStmt := name + ".route = False"
	if containsStmt(source, portStmt) || containsStmt(source, netStmt) {
		return source
	}

	lines := strings.Split(source, "\n")
	portDecl := regexp.MustCompile(`^(\s*)port\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	netDecl := regexp.MustCompile(`^(\s*)net\s+` + regexp.QuoteMeta(name) + `\s*$`)

	for i, line := range lines {
		var stmt, indent string
		if m := portDecl.FindStringSubmatch(line); m != nil {
			stmt, indent = portStmt, m[1]
		} else if m := netDecl.FindStringSubmatch(line); m != nil {
			stmt, indent = netStmt, m[1]
		} else {
			continue
		}
		inserted := append([]string{}, lines[:i+1]...)
		inserted = append(inserted, indent+stmt)
		inserted = append(inserted, lines[i+1:]...)
		return strings.Join(inserted, "\n")
	}
	return source
}

func containsStmt(source, stmt string) bool {
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) == stmt {
			return true
		}
	}
	return false
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 8
		default:
			return n
		}
	}
	return n
}
