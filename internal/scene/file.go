package scene

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the YAML snapshot of a scene. Parents are referenced by name so
// the file stays stable when IDs are reassigned on import.
type File struct {
	Objects []FileObject `yaml:"objects" validate:"unique=Name,dive"`
}

// FileObject is one object entry in a scene snapshot file.
type FileObject struct {
	Name       string            `yaml:"name" validate:"required"`
	Type       string            `yaml:"type" validate:"required"`
	Parent     string            `yaml:"parent,omitempty" validate:"omitempty,nefield=Name"`
	Selected   bool              `yaml:"selected,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ReadFile loads and validates a scene snapshot from path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("scene file %s: %w", path, err)
	}
	return f, nil
}

// Decode parses and validates a scene snapshot.
func Decode(r io.Reader) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks field constraints and that every parent names an object
// in the file.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	names := make(map[string]bool, len(f.Objects))
	for _, o := range f.Objects {
		names[o.Name] = true
	}
	for _, o := range f.Objects {
		if o.Parent != "" && !names[o.Parent] {
			return fmt.Errorf("validate: object %q: unknown parent %q", o.Name, o.Parent)
		}
	}
	return nil
}

// Memory builds an in-memory scene from the snapshot. Objects keep file
// order; parents may appear after their children.
func (f *File) Memory() (*Memory, error) {
	m := NewMemory()
	for _, o := range f.Objects {
		if _, err := m.Add(o.Name, o.Type, ""); err != nil {
			return nil, err
		}
		for k, v := range o.Properties {
			if err := m.SetPropertyByName(o.Name, k, v); err != nil {
				return nil, err
			}
		}
		if o.Selected {
			if err := m.SetSelectedByName(o.Name, true); err != nil {
				return nil, err
			}
		}
	}
	for _, o := range f.Objects {
		if o.Parent == "" {
			continue
		}
		if err := m.Reparent(o.Name, o.Parent); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FromObjects converts a provider snapshot back into file form. Parents
// missing from objs are dropped.
func FromObjects(objs []*Object) *File {
	idx := Index(objs)
	f := &File{Objects: make([]FileObject, 0, len(objs))}
	for _, o := range objs {
		fo := FileObject{
			Name:     o.Name,
			Type:     o.Type,
			Selected: o.Selected,
		}
		if o.ParentID != nil {
			if p, ok := idx[*o.ParentID]; ok {
				fo.Parent = p.Name
			}
		}
		if len(o.Properties) > 0 {
			fo.Properties = make(map[string]string, len(o.Properties))
			for k, v := range o.Properties {
				fo.Properties[k] = v
			}
		}
		f.Objects = append(f.Objects, fo)
	}
	return f
}

// Encode writes the snapshot as YAML.
func (f *File) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the snapshot to path, creating parent directories.
func (f *File) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write scene file: %w", err)
	}
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write scene file: %w", err)
	}
	return nil
}

// PropertyKeys returns the sorted property keys of o.
func PropertyKeys(o *Object) []string {
	keys := make([]string, 0, len(o.Properties))
	for k := range o.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
