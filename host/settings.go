// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/beevik/prefixtree/v2"
	"github.com/kirsle/configdir"
)

type settings struct {
	HexMode         bool   `toml:"hex_mode" doc:"hexadecimal input mode"`
	TrapMemory      bool   `toml:"trap_memory" doc:"stop on reads of uninitialized memory"`
	ShowEffects     bool   `toml:"show_effects" doc:"display the side effect of each step"`
	MemDumpBytes    int    `toml:"mem_dump_bytes" doc:"default number of memory bytes to dump"`
	DisasmLines     int    `toml:"disasm_lines" doc:"default number of lines to disassemble"`
	MaxStepLines    int    `toml:"max_step_lines" doc:"max lines to disassemble when stepping"`
	RunLimit        int    `toml:"run_limit" doc:"max instructions per run, 0 for no limit"`
	NextDisasmAddr  uint16 `toml:"-" doc:"address of next disassembly"`
	NextMemDumpAddr uint16 `toml:"-" doc:"address of next memory dump"`
}

func newSettings() *settings {
	return &settings{
		HexMode:         false,
		TrapMemory:      false,
		ShowEffects:     false,
		MemDumpBytes:    64,
		DisasmLines:     10,
		MaxStepLines:    20,
		RunLimit:        0,
		NextDisasmAddr:  0,
		NextMemDumpAddr: 0,
	}
}

type settingsField struct {
	name  string
	index int
	kind  reflect.Kind
	typ   reflect.Type
	doc   string
}

var (
	settingsTree   = prefixtree.New[*settingsField]()
	settingsFields []settingsField
)

func init() {
	settingsType := reflect.TypeOf(settings{})
	settingsFields = make([]settingsField, settingsType.NumField())
	for i := 0; i < len(settingsFields); i++ {
		f := settingsType.Field(i)
		doc, _ := f.Tag.Lookup("doc")
		settingsFields[i] = settingsField{
			name:  f.Name,
			index: i,
			kind:  f.Type.Kind(),
			typ:   f.Type,
			doc:   doc,
		}
		settingsTree.Add(strings.ToLower(f.Name), &settingsFields[i])
	}
}

func (s *settings) Display(w io.Writer) {
	value := reflect.ValueOf(s).Elem()
	for i, f := range settingsFields {
		v := value.Field(i)
		var s string
		switch f.kind {
		case reflect.String:
			s = fmt.Sprintf("    %-16s \"%s\"", f.name, v.String())
		case reflect.Uint8:
			s = fmt.Sprintf("    %-16s $%02X", f.name, uint8(v.Uint()))
		case reflect.Uint16:
			s = fmt.Sprintf("    %-16s $%04X", f.name, uint16(v.Uint()))
		default:
			s = fmt.Sprintf("    %-16s %v", f.name, v)
		}
		fmt.Fprintf(w, "%-28s (%s)\n", s, f.doc)
	}
}

// Kind returns the kind of the setting whose name starts with key, or
// reflect.Invalid if no single setting matches.
func (s *settings) Kind(key string) reflect.Kind {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return reflect.Invalid
	}
	return f.kind
}

func (s *settings) Set(key string, value any) error {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return err
	}

	vIn := reflect.ValueOf(value)
	if (f.kind == reflect.String && vIn.Type().Kind() != reflect.String) ||
		(f.kind != reflect.String && vIn.Type().Kind() == reflect.String) ||
		!vIn.Type().ConvertibleTo(f.typ) {
		return errors.New("invalid type")
	}
	vInConverted := vIn.Convert(f.typ)

	vOut := reflect.ValueOf(s).Elem().Field(f.index)
	vOut.Set(vInConverted)

	return nil
}

// DefaultConfigPath returns the location of the settings file in the
// user's configuration directory, creating the directory if needed.
func DefaultConfigPath() (string, error) {
	dir := configdir.LocalConfig("go65c02")
	if err := configdir.MakePath(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// Load settings from a TOML file. A missing file leaves the settings
// unchanged.
func (s *settings) load(path string) error {
	_, err := toml.DecodeFile(path, s)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *settings) save(path string) error {
	b, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
