package log

import (
	"fmt"
	"strings"
)

// ModuleMask is a set of modules, one bit per module.
type ModuleMask uint64

// Module identifies the subsystem emitting a log entry.
type Module uint

// ModuleMaskAll selects every module.
const ModuleMaskAll ModuleMask = 0xFFFFFFFFFFFFFFFF

// Standard modules.
const (
	ModAsm Module = iota + 1
	ModCPU
	ModMem
	ModDis
	ModHost

	endStandardMods
)

var modCount = endStandardMods

var modDebugMask ModuleMask

var modNames = []string{
	"<error>", "asm", "cpu", "mem", "dis", "host",
}

// NewModule registers an additional module.
func NewModule(name string) Module {
	mod := modCount
	modCount++
	modNames = append(modNames, name)
	return mod
}

// ModuleByName returns the module registered under name.
func ModuleByName(name string) (Module, bool) {
	for idx, s := range modNames {
		if idx > 0 && s == name {
			return Module(idx), true
		}
	}
	return Module(0xFFFFFFFF), false
}

// ModuleNames returns the names of all registered modules.
func ModuleNames() []string {
	return append([]string(nil), modNames[1:]...)
}

// ParseModuleMask converts a comma-separated list of module names into a
// mask. "all" selects every module and "no" selects none.
func ParseModuleMask(s string) (ModuleMask, error) {
	var mask ModuleMask
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		switch name {
		case "":
			continue
		case "all":
			mask = ModuleMaskAll
		case "no", "none":
			mask = 0
		default:
			mod, ok := ModuleByName(name)
			if !ok {
				return 0, fmt.Errorf("unknown log module %q", name)
			}
			mask |= mod.Mask()
		}
	}
	return mask, nil
}

// EnableDebugModules turns on debug output for the modules in mask.
func EnableDebugModules(mask ModuleMask) {
	modDebugMask |= mask
}

// DisableDebugModules turns off debug output for the modules in mask.
func DisableDebugModules(mask ModuleMask) {
	modDebugMask &^= mask
}

// Mask returns the single-module mask of mod.
func (mod Module) Mask() ModuleMask {
	return 1 << ModuleMask(mod)
}

func (mod Module) String() string {
	if int(mod) < len(modNames) {
		return modNames[mod]
	}
	return modNames[0]
}

// Enabled reports whether an entry at the given level would be emitted.
func (mod Module) Enabled(level Level) bool {
	return level <= WarnLevel || modDebugMask&mod.Mask() != 0
}

func (mod Module) WithFields(fields Fields) Entry {
	return Entry{mod: mod}.WithFields(fields)
}

func (mod Module) WithField(key string, value any) Entry {
	return Entry{mod: mod}.WithField(key, value)
}

func (mod Module) Debugf(format string, args ...any) {
	Entry{mod: mod}.Debugf(format, args...)
}

func (mod Module) Infof(format string, args ...any) {
	Entry{mod: mod}.Infof(format, args...)
}

func (mod Module) Warnf(format string, args ...any) {
	Entry{mod: mod}.Warnf(format, args...)
}

func (mod Module) Errorf(format string, args ...any) {
	Entry{mod: mod}.Errorf(format, args...)
}
