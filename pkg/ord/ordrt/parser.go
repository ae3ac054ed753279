package ordrt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError is returned for structural problems in the source text.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func parseErrf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Message: fmt.Sprintf(format, args...)}
}

var (
	cellHeaderRe    = regexp.MustCompile(`^cell\s+(\w+)\s*:\s*$`)
	viewgenRe       = regexp.MustCompile(`^viewgen\s+(\w+)\s*:\s*$`)
	paramRe         = regexp.MustCompile(`^(\w+)\s*=\s*Parameter\(\s*([^,\)]+?)\s*(?:,\s*default\s*=\s*([^\)]+?)\s*)?\)$`)
	pinRe           = regexp.MustCompile(`^(input|output|inout)\s+(\w+)\s*(?:\((.*)\))?\s*$`)
	portRe          = regexp.MustCompile(`^port\s+(\w+)\s*\((.*)\)\s*$`)
	netRe           = regexp.MustCompile(`^net\s+(\w+)\s*$`)
	inlineInstRe    = regexp.MustCompile(`^(\w+)\s+(\w+)\s*\((.*)\)\s*$`)
	blockInstRe     = regexp.MustCompile(`^(\w+)\s+(\w+)\s*:\s*$`)
	posArgRe        = regexp.MustCompile(`^\.pos\s*=\s*\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)$`)
	alignArgRe      = regexp.MustCompile(`^\.align\s*=\s*Orientation\.(\w+)$`)
	connArgRe       = regexp.MustCompile(`^\.(\w+)\s*--\s*(\w+)$`)
	paramArgRe      = regexp.MustCompile(`^\.\$(\w+)\s*=\s*(.+)$`)
	routeRe         = regexp.MustCompile(`^(\w+)(\.ref)?\.route\s*=\s*False$`)
	deferredConnRe  = regexp.MustCompile(`^(\w+)\.(\w+)\s*--\s*(\w+)$`)
	deferredParamRe = regexp.MustCompile(`^(\w+)\.\$(\w+)\s*=\s*(.+)$`)
	forRe           = regexp.MustCompile(`^for\s+(\w+)\s+in\s+(.+?)\s*:\s*$`)
	importRe        = regexp.MustCompile(`^(?:from\s+[\w.]+\s+import\s+.+|import\s+[\w.]+.*)$`)
	helperCallRe    = regexp.MustCompile(`^(?:helpers\.\w+\(.*\)|ctx\.root\.outline\s*=.*|return\s+ctx\.root)$`)
)

// srcLine is a significant source line with its indentation resolved.
type srcLine struct {
	num    int
	indent int
	text   string // trimmed statement text, comments removed
}

// parse turns ORD source into a program or a *ParseError.
//
// The grammar is line-oriented with Python-style significant indentation.
// Anything the validator's stage contract does not need (helper calls,
// imports, docstrings) parses as a no-op so that generator boilerplate
// never breaks the pipeline before execution.
func parse(source string) (*program, error) {
	lines, err := scanLines(source)
	if err != nil {
		return nil, err
	}

	p := &program{Source: source}
	i := 0
	for i < len(lines) {
		ln := lines[i]
		if ln.indent != 0 {
			return nil, parseErrf(ln.num, "unexpected indentation at top level")
		}
		switch {
		case importRe.MatchString(ln.text):
			p.Imports = append(p.Imports, ln.text)
			i++
		case cellHeaderRe.MatchString(ln.text):
			cell, next, err := parseCell(lines, i)
			if err != nil {
				return nil, err
			}
			p.Cells = append(p.Cells, cell)
			i = next
		default:
			return nil, parseErrf(ln.num, "unexpected top-level statement: %q", ln.text)
		}
	}
	return p, nil
}

// scanLines strips comments, blank lines, and docstrings, and computes
// indentation. Tabs count as 8 columns, mirroring Python's tokenizer.
func scanLines(source string) ([]srcLine, error) {
	var out []srcLine
	inDoc := false
	for num, raw := range strings.Split(source, "\n") {
		text := raw

		// Docstrings can span lines; they carry no program meaning here.
		if inDoc {
			if strings.Contains(text, `"""`) {
				inDoc = false
			}
			continue
		}

		indent := 0
	scan:
		for _, r := range text {
			switch r {
			case ' ':
				indent++
			case '\t':
				indent += 8
			default:
				break scan
			}
		}
		text = strings.TrimSpace(text)

		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, `"""`) {
			if strings.Count(text, `"""`) < 2 {
				inDoc = true
			}
			continue
		}
		if idx := commentStart(text); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
			if text == "" {
				continue
			}
		}

		out = append(out, srcLine{num: num + 1, indent: indent, text: text})
	}
	if inDoc {
		return nil, parseErrf(len(strings.Split(source, "\n")), "unterminated docstring")
	}
	return out, nil
}

// commentStart returns the index of a trailing comment, or -1.
// A '#' inside a string literal does not start a comment.
func commentStart(text string) int {
	inStr := rune(0)
	for i, r := range text {
		switch {
		case inStr != 0:
			if r == inStr {
				inStr = 0
			}
		case r == '\'' || r == '"':
			inStr = r
		case r == '#':
			return i
		}
	}
	return -1
}

// parseCell parses a `cell Name:` block starting at lines[start].
// Returns the cell and the index of the first line after the block.
func parseCell(lines []srcLine, start int) (*cellDef, int, error) {
	header := lines[start]
	name := cellHeaderRe.FindStringSubmatch(header.text)[1]
	cell := &cellDef{Name: name, Line: header.num}

	i := start + 1
	if i >= len(lines) || lines[i].indent <= header.indent {
		return nil, 0, parseErrf(header.num, "cell %s has an empty body", name)
	}
	body := lines[i].indent

	for i < len(lines) && lines[i].indent > header.indent {
		ln := lines[i]
		if ln.indent != body {
			return nil, 0, parseErrf(ln.num, "inconsistent indentation in cell %s", name)
		}
		switch {
		case paramRe.MatchString(ln.text):
			m := paramRe.FindStringSubmatch(ln.text)
			cell.Params = append(cell.Params, &paramDecl{
				Name:       m[1],
				Type:       m[2],
				Default:    strings.TrimSpace(m[3]),
				HasDefault: m[3] != "",
				Line:       ln.num,
			})
			i++
		case viewgenRe.MatchString(ln.text):
			kind := viewgenRe.FindStringSubmatch(ln.text)[1]
			switch kind {
			case "symbol":
				sym, next, err := parseSymbol(lines, i)
				if err != nil {
					return nil, 0, err
				}
				cell.Symbol = sym
				i = next
			case "schematic":
				sch, next, err := parseSchematic(lines, i)
				if err != nil {
					return nil, 0, err
				}
				cell.Schematic = sch
				i = next
			default:
				return nil, 0, parseErrf(ln.num, "unknown viewgen kind %q", kind)
			}
		default:
			return nil, 0, parseErrf(ln.num, "unexpected statement in cell %s: %q", name, ln.text)
		}
	}
	return cell, i, nil
}

// parseSymbol parses a `viewgen symbol:` block.
func parseSymbol(lines []srcLine, start int) (*symbolDef, int, error) {
	header := lines[start]
	sym := &symbolDef{}

	i := start + 1
	for i < len(lines) && lines[i].indent > header.indent {
		ln := lines[i]
		switch {
		case pinRe.MatchString(ln.text):
			m := pinRe.FindStringSubmatch(ln.text)
			pin := &pinDecl{Name: m[2], Dir: m[1], Line: ln.num}
			if m[3] != "" {
				for _, arg := range splitArgs(m[3]) {
					am := alignArgRe.FindStringSubmatch(arg)
					if am == nil {
						return nil, 0, parseErrf(ln.num, "unexpected pin argument %q", arg)
					}
					pin.Align = am[1]
				}
			}
			sym.Pins = append(sym.Pins, pin)
			i++
		case helperCallRe.MatchString(ln.text):
			i++
		default:
			return nil, 0, parseErrf(ln.num, "unexpected statement in viewgen symbol: %q", ln.text)
		}
	}
	return sym, i, nil
}

// parseSchematic parses a `viewgen schematic:` block.
func parseSchematic(lines []srcLine, start int) (*schematicDef, int, error) {
	header := lines[start]
	sch := &schematicDef{RouteDisabled: make(map[string]bool)}

	i := start + 1
	for i < len(lines) && lines[i].indent > header.indent {
		ln := lines[i]
		switch {
		case portRe.MatchString(ln.text):
			m := portRe.FindStringSubmatch(ln.text)
			port := &portDecl{Name: m[1], Line: ln.num}
			for _, arg := range splitArgs(m[2]) {
				switch {
				case posArgRe.MatchString(arg):
					pm := posArgRe.FindStringSubmatch(arg)
					port.Pos = xy{atoi(pm[1]), atoi(pm[2])}
					port.HasPos = true
				case alignArgRe.MatchString(arg):
					port.Align = alignArgRe.FindStringSubmatch(arg)[1]
				default:
					return nil, 0, parseErrf(ln.num, "unexpected port argument %q", arg)
				}
			}
			sch.Ports = append(sch.Ports, port)
			i++

		case netRe.MatchString(ln.text):
			sch.Nets = append(sch.Nets, &netDecl{Name: netRe.FindStringSubmatch(ln.text)[1], Line: ln.num})
			i++

		case routeRe.MatchString(ln.text):
			sch.RouteDisabled[routeRe.FindStringSubmatch(ln.text)[1]] = true
			i++

		case forRe.MatchString(ln.text):
			stmts, next, err := parseFor(lines, i)
			if err != nil {
				return nil, 0, err
			}
			sch.deferred = append(sch.deferred, stmts...)
			i = next

		case deferredParamRe.MatchString(ln.text):
			m := deferredParamRe.FindStringSubmatch(ln.text)
			sch.deferred = append(sch.deferred, deferredStmt{Target: m[1], Param: m[2], Value: strings.TrimSpace(m[3]), Line: ln.num})
			i++

		case blockInstRe.MatchString(ln.text):
			inst, next, err := parseBlockInstance(lines, i)
			if err != nil {
				return nil, 0, err
			}
			sch.Instances = append(sch.Instances, inst)
			i = next

		case inlineInstRe.MatchString(ln.text):
			m := inlineInstRe.FindStringSubmatch(ln.text)
			inst := &instanceDecl{Type: m[1], Name: m[2], Params: make(map[string]string), Line: ln.num}
			for _, arg := range splitArgs(m[3]) {
				if err := applyInstanceArg(inst, arg, ln.num); err != nil {
					return nil, 0, err
				}
			}
			sch.Instances = append(sch.Instances, inst)
			i++

		case deferredConnRe.MatchString(ln.text):
			m := deferredConnRe.FindStringSubmatch(ln.text)
			sch.deferred = append(sch.deferred, deferredStmt{Target: m[1], Pin: m[2], Net: m[3], Line: ln.num})
			i++

		case helperCallRe.MatchString(ln.text):
			i++

		default:
			return nil, 0, parseErrf(ln.num, "unexpected statement in viewgen schematic: %q", ln.text)
		}
	}
	return sch, i, nil
}

// parseBlockInstance parses `Type name:` followed by an indented body of
// `.pin -- net`, `.pos = (x, y)`, and `.$param = value` lines.
func parseBlockInstance(lines []srcLine, start int) (*instanceDecl, int, error) {
	header := lines[start]
	m := blockInstRe.FindStringSubmatch(header.text)
	inst := &instanceDecl{Type: m[1], Name: m[2], Params: make(map[string]string), Line: header.num}

	i := start + 1
	if i >= len(lines) || lines[i].indent <= header.indent {
		return nil, 0, parseErrf(header.num, "instance %s has an empty body", inst.Name)
	}
	for i < len(lines) && lines[i].indent > header.indent {
		if err := applyInstanceArg(inst, lines[i].text, lines[i].num); err != nil {
			return nil, 0, err
		}
		i++
	}
	return inst, i, nil
}

// parseFor expands a `for VAR in a, b:` loop over instance names into the
// equivalent deferred statements, one per loop target.
func parseFor(lines []srcLine, start int) ([]deferredStmt, int, error) {
	header := lines[start]
	m := forRe.FindStringSubmatch(header.text)
	loopVar := m[1]

	var targets []string
	for _, t := range strings.Split(m[2], ",") {
		t = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(t), "("), ")"))
		if t == "" {
			continue
		}
		if !identRe.MatchString(t) {
			return nil, 0, parseErrf(header.num, "unsupported loop target %q", t)
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, 0, parseErrf(header.num, "for loop without targets")
	}

	var out []deferredStmt
	i := start + 1
	if i >= len(lines) || lines[i].indent <= header.indent {
		return nil, 0, parseErrf(header.num, "for loop has an empty body")
	}
	for i < len(lines) && lines[i].indent > header.indent {
		ln := lines[i]
		switch {
		case deferredParamRe.MatchString(ln.text):
			m := deferredParamRe.FindStringSubmatch(ln.text)
			if m[1] != loopVar {
				return nil, 0, parseErrf(ln.num, "for body may only reference loop variable %q", loopVar)
			}
			for _, tgt := range targets {
				out = append(out, deferredStmt{Target: tgt, Param: m[2], Value: strings.TrimSpace(m[3]), Line: ln.num})
			}
		case deferredConnRe.MatchString(ln.text):
			m := deferredConnRe.FindStringSubmatch(ln.text)
			if m[1] != loopVar {
				return nil, 0, parseErrf(ln.num, "for body may only reference loop variable %q", loopVar)
			}
			for _, tgt := range targets {
				out = append(out, deferredStmt{Target: tgt, Pin: m[2], Net: m[3], Line: ln.num})
			}
		default:
			return nil, 0, parseErrf(ln.num, "unsupported statement in for body: %q", ln.text)
		}
		i++
	}
	return out, i, nil
}

var identRe = regexp.MustCompile(`^\w+$`)

// applyInstanceArg parses one instance argument or block-body statement.
func applyInstanceArg(inst *instanceDecl, arg string, line int) error {
	switch {
	case posArgRe.MatchString(arg):
		m := posArgRe.FindStringSubmatch(arg)
		inst.Pos = xy{atoi(m[1]), atoi(m[2])}
		inst.HasPos = true
	case connArgRe.MatchString(arg):
		m := connArgRe.FindStringSubmatch(arg)
		inst.Conns = append(inst.Conns, conn{Pin: m[1], Net: m[2], Line: line})
	case paramArgRe.MatchString(arg):
		m := paramArgRe.FindStringSubmatch(arg)
		inst.Params[m[1]] = strings.TrimSpace(m[2])
	default:
		return parseErrf(line, "unexpected instance argument %q for %s", arg, inst.Name)
	}
	return nil
}

// splitArgs splits an inline argument list on ';' or ',' separators entered
// outside parentheses. The examples mix both separators freely.
func splitArgs(args string) []string {
	var out []string
	depth := 0
	cur := strings.Builder{}
	for _, r := range args {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case (r == ';' || r == ',') && depth == 0:
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
