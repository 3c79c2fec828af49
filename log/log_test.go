package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestModuleByName(t *testing.T) {
	for _, name := range []string{"asm", "cpu", "mem", "dis", "host"} {
		mod, ok := ModuleByName(name)
		if !ok {
			t.Errorf("module %s not found", name)
			continue
		}
		if mod.String() != name {
			t.Errorf("module name incorrect. exp: %s, got: %s", name, mod.String())
		}
	}
	if _, ok := ModuleByName("<error>"); ok {
		t.Error("placeholder module name resolved")
	}
}

func TestParseModuleMask(t *testing.T) {
	mask, err := ParseModuleMask("asm, CPU")
	if err != nil {
		t.Fatal(err)
	}
	if mask != ModAsm.Mask()|ModCPU.Mask() {
		t.Errorf("mask incorrect. got: %x", mask)
	}
	if mask, _ = ParseModuleMask("all"); mask != ModuleMaskAll {
		t.Errorf("all mask incorrect. got: %x", mask)
	}
	if mask, _ = ParseModuleMask("asm,no"); mask != 0 {
		t.Errorf("no mask incorrect. got: %x", mask)
	}
	if _, err = ParseModuleMask("bogus"); err == nil {
		t.Error("expected error for unknown module")
	}
}

func TestDebugGating(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer DisableDebugModules(ModuleMaskAll)

	ModDis.Debugf("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output emitted while disabled: %q", buf.String())
	}

	ModDis.WithField("line", 3).Warnf("shown")
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "line=3") {
		t.Errorf("warning missing: %q", buf.String())
	}

	buf.Reset()
	EnableDebugModules(ModDis.Mask())
	ModDis.Debugf("visible")
	if !strings.Contains(buf.String(), "mod=dis") {
		t.Errorf("debug output missing: %q", buf.String())
	}
}
