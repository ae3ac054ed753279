package ord

import (
	"strings"
	"testing"
)

const inverterBody = `from ordec.core import *

cell Inv:
    viewgen schematic:
        port vdd(.pos=(2,13); .align=Orientation.North)
`

func TestExtractCodePrefersORDFence(t *testing.T) {
	reply := "Here is the circuit:\n\n```ord\ncell Inv:\n    pass\n```\n\nand some prose."
	code := ExtractCode(reply)
	if !strings.Contains(code, "cell Inv:") {
		t.Fatalf("extracted code missing cell declaration: %q", code)
	}
	if !strings.HasPrefix(code, VersionHeader) {
		t.Errorf("extracted code should carry the version header, got: %q", code)
	}
}

func TestExtractCodePythonFenceFallback(t *testing.T) {
	reply := "```python\n" + inverterBody + "```"
	code := ExtractCode(reply)
	if !strings.Contains(code, "cell Inv:") {
		t.Errorf("python fence should be accepted, got: %q", code)
	}
}

func TestExtractCodeUntaggedFenceNeedsMarkers(t *testing.T) {
	withMarker := "```\n" + inverterBody + "```"
	if code := ExtractCode(withMarker); !strings.Contains(code, "cell Inv:") {
		t.Errorf("untagged fence with cell marker should be accepted, got: %q", code)
	}

	noMarker := "```\njust some text\n```"
	if code := ExtractCode(noMarker); code != "" {
		t.Errorf("untagged fence without markers should be rejected, got: %q", code)
	}

	if code := ExtractCode("no fences at all"); code != "" {
		t.Errorf("reply without fences should yield empty code, got: %q", code)
	}
}

func TestEnsureVersionHeader(t *testing.T) {
	src := "cell Inv:\n    pass"
	out := EnsureVersionHeader(src)
	if !strings.HasPrefix(out, VersionHeader+"\n") {
		t.Errorf("header not prepended: %q", out)
	}

	// Idempotent: a present header (any spelling) is kept as-is.
	if again := EnsureVersionHeader(out); again != out {
		t.Error("EnsureVersionHeader should be idempotent")
	}
	variant := "# version ord2 file\ncell Inv:"
	if EnsureVersionHeader(variant) != variant {
		t.Error("existing version marker should be recognized")
	}
}

func TestEnsureParameterDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"R type", "    w = Parameter(R)", "    w = Parameter(R, default=1u)"},
		{"int type", "    stages = Parameter(int)", "    stages = Parameter(int, default=2)"},
		{"qualified type", "    x = Parameter(core.R)", "    x = Parameter(core.R, default=1u)"},
		{"with comment", "    l = Parameter(R)  # length", "    l = Parameter(R, default=1u)  # length"},
		{"already defaulted", "    w = Parameter(R, default=2u)", "    w = Parameter(R, default=2u)"},
		{"unrelated line", "    pd.$w = 1u", "    pd.$w = 1u"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnsureParameterDefaults(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripHelpers(t *testing.T) {
	src := strings.Join([]string{
		"# -*- version: ord2 -*-",
		"from ordec.schematic.routing import schematic_routing",
		"cell Inv:",
		"    viewgen schematic:",
		"        port a(.pos=(1,7); .align=Orientation.East)",
		"        helpers.resolve_instances(ctx.root)",
		"        ctx.root.outline = schematic_routing(ctx.root)",
		"        return ctx.root",
		"",
	}, "\n")

	out := StripHelpers(src)
	for _, gone := range []string{"helpers.resolve_instances", "schematic_routing", "return ctx.root"} {
		if strings.Contains(out, gone) {
			t.Errorf("StripHelpers should remove %q, output:\n%s", gone, out)
		}
	}
	if !strings.Contains(out, "port a(.pos=(1,7)") {
		t.Error("StripHelpers must keep circuit content")
	}
}
