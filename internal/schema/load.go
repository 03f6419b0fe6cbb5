package schema

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Load resolves a schema by file path or, when no such file exists, by
// registered plugin name.
func Load(nameOrPath string) (*Schema, error) {
	ref := strings.TrimSpace(nameOrPath)
	if ref == "" {
		return nil, loadErr("no schema given")
	}
	if _, err := os.Stat(ref); err == nil {
		return LoadFile(ref)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, loadErr("stat %s: %v", ref, err)
	}
	return LoadPlugin(ref)
}

// LoadPlugin builds the schema of a registered plugin.
func LoadPlugin(name string) (*Schema, error) {
	p, ok := Lookup(name)
	if !ok {
		return nil, loadErr("no schema file or plugin named %q (available: %s)", name, strings.Join(Plugins(), ", "))
	}
	return Build(p.Definition, p.Parse)
}

// LoadFile reads a TOML schema file. A `parser` key binds the custom parse
// function of the registered plugin with that name.
func LoadFile(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErr("read %s: %v", path, err)
	}
	return Decode(raw, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// Decode parses a TOML schema document. defaultName is used when the
// document does not set one.
func Decode(raw []byte, defaultName string) (*Schema, error) {
	var def Definition
	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, loadErr("parse: %v", err)
	}
	if def.Name == "" {
		def.Name = defaultName
	}

	var parse ParseFunc
	if def.Parser != "" {
		p, ok := Lookup(def.Parser)
		if !ok || p.Parse == nil {
			return nil, loadErr("unknown parser %q", def.Parser)
		}
		parse = p.Parse
	}
	return Build(def, parse)
}
