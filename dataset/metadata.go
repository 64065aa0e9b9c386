package dataset

import (
	"io"
	"os"

	"github.com/YuminosukeSato/mobtree/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Metadata fixes the kinds and level orders of variables read from CSV.
type Metadata struct {
	Variables []Variable
}

func (m *Metadata) lookup(name string) (Variable, bool) {
	if m == nil {
		return Variable{}, false
	}
	for _, v := range m.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// ReadMetadata parses a YAML document of the form
//
//	variables:
//	  age: continuous
//	  gender: [female, male]
//	  education: {ordinal: [low, mid, high]}
//
// A plain list declares a nominal variable. Variables keep document order.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	var doc struct {
		Variables yaml.Node `yaml:"variables"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "parsing metadata")
	}
	if doc.Variables.Kind != yaml.MappingNode {
		return nil, errors.New("metadata has no variables mapping")
	}

	m := &Metadata{}
	content := doc.Variables.Content
	for i := 0; i+1 < len(content); i += 2 {
		name := content[i].Value
		v, err := decodeVariable(name, content[i+1])
		if err != nil {
			return nil, err
		}
		if err := v.validate(); err != nil {
			return nil, err
		}
		m.Variables = append(m.Variables, v)
	}
	return m, nil
}

func decodeVariable(name string, node *yaml.Node) (Variable, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var k Kind
		if err := k.UnmarshalText([]byte(node.Value)); err != nil {
			return Variable{}, errors.Wrapf(err, "variable %s (line %d)", name, node.Line)
		}
		if k != Continuous {
			return Variable{}, errors.Newf("variable %s (line %d): %s variables need a list of levels", name, node.Line, k)
		}
		return NewContinuous(name), nil
	case yaml.SequenceNode:
		var levels []string
		if err := node.Decode(&levels); err != nil {
			return Variable{}, errors.Wrapf(err, "variable %s (line %d)", name, node.Line)
		}
		return NewNominal(name, levels...), nil
	case yaml.MappingNode:
		var spec map[string][]string
		if err := node.Decode(&spec); err != nil {
			return Variable{}, errors.Wrapf(err, "variable %s (line %d)", name, node.Line)
		}
		if len(spec) != 1 {
			return Variable{}, errors.Newf("variable %s (line %d): expected exactly one of ordinal or nominal", name, node.Line)
		}
		for key, levels := range spec {
			var k Kind
			if err := k.UnmarshalText([]byte(key)); err != nil || k == Continuous {
				return Variable{}, errors.Newf("variable %s (line %d): unknown kind %q", name, node.Line, key)
			}
			return Variable{Name: name, Kind: k, Levels: levels}, nil
		}
	}
	return Variable{}, errors.Newf("variable %s (line %d): invalid declaration", name, node.Line)
}

// ReadMetadataFile reads metadata from a YAML file.
func ReadMetadataFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening metadata file %s", path)
	}
	defer f.Close()
	m, err := ReadMetadata(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing metadata file %s", path)
	}
	return m, nil
}
