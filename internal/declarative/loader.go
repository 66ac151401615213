package declarative

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures YAML loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadDirectory reads all YAML files under dir and returns the desired
// state. Files are visited in lexical order; each may hold several
// "---"-separated documents.
func LoadDirectory(dir string) (*DesiredState, error) {
	return LoadDirectoryWithOptions(dir, LoadOptions{})
}

// LoadDirectoryWithOptions reads all YAML files under dir using
// caller-provided loading options.
func LoadDirectoryWithOptions(dir string, opts LoadOptions) (*DesiredState, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory: %s is not a directory", dir)
	}

	state := &DesiredState{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isYAML(path) {
			return nil
		}
		return loadFile(path, state, opts)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// loadFile decodes every document in path into state.
func loadFile(path string, state *DesiredState, opts LoadOptions) error {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if isEmptyDocument(&node) {
			continue
		}
		loc := path
		if i > 0 {
			loc = fmt.Sprintf("%s[%d]", path, i)
		}
		if err := loadDocument(loc, path, &node, state, opts); err != nil {
			return err
		}
	}
}

func isEmptyDocument(node *yaml.Node) bool {
	return node.Kind == yaml.DocumentNode && (len(node.Content) == 0 || node.Content[0].Tag == "!!null")
}

func loadDocument(loc, path string, node *yaml.Node, state *DesiredState, opts LoadOptions) error {
	var env Document
	if err := node.Decode(&env); err != nil {
		return fmt.Errorf("parse %s: %w", loc, err)
	}

	switch env.Kind {
	case KindNameProvider:
		var doc ProviderDoc
		if err := decodeNode(node, &doc, opts); err != nil {
			return fmt.Errorf("parse %s: %w", loc, err)
		}
		if err := validateDocument(loc, doc.APIVersion, doc.Kind, KindNameProvider); err != nil {
			return err
		}
		if state.Provider != nil {
			return fmt.Errorf("%s: duplicate Provider document (first defined in %s)", loc, state.ProviderFile)
		}
		state.Provider = &doc.Spec
		state.ProviderFile = path

	case KindNameTable:
		var doc TableDoc
		if err := decodeNode(node, &doc, opts); err != nil {
			return fmt.Errorf("parse %s: %w", loc, err)
		}
		if err := validateDocument(loc, doc.APIVersion, doc.Kind, KindNameTable); err != nil {
			return err
		}
		state.Tables = append(state.Tables, TableResource{
			Name:       doc.Metadata.Name,
			Spec:       doc.Spec,
			SourceFile: path,
		})

	case KindNameIndex:
		var doc IndexDoc
		if err := decodeNode(node, &doc, opts); err != nil {
			return fmt.Errorf("parse %s: %w", loc, err)
		}
		if err := validateDocument(loc, doc.APIVersion, doc.Kind, KindNameIndex); err != nil {
			return err
		}
		state.Indexes = append(state.Indexes, IndexResource{
			Name:       doc.Metadata.Name,
			Spec:       doc.Spec,
			SourceFile: path,
		})

	case "":
		return fmt.Errorf("%s: missing kind", loc)
	default:
		return fmt.Errorf("%s: unknown kind %q (expected %s, %s or %s)",
			loc, env.Kind, KindNameProvider, KindNameTable, KindNameIndex)
	}
	return nil
}

// decodeNode decodes node into target. yaml.Node.Decode cannot reject
// unknown fields, so strict decoding goes through a re-encoded copy.
func decodeNode(node *yaml.Node, target any, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		return node.Decode(target)
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(target)
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path string, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return fmt.Errorf("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}
