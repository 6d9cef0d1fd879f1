package schema

import (
	"fmt"

	"github.com/twpayne/go-vfs/v4"
	"gopkg.in/yaml.v3"
)

const mappingSection = "Mapping"

// Load reads a template from the given filesystem.
func Load(fs vfs.FS, path string) (*Template, error) {
	dat, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", path, err)
	}
	return Parse(dat)
}

// Parse decodes a template document.
func Parse(dat []byte) (*Template, error) {
	t := &Template{}
	if err := yaml.Unmarshal(dat, t); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return t, nil
}

// UnmarshalYAML walks the section node by node, a Go map would lose the
// declaration order that drives partitioning.
func (b *Blockdevices) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: Blockdevices must be a mapping", value.Line)
	}
	b.Devices = map[string][]PartitionSpec{}
	seen := map[string]bool{}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key, node := value.Content[i], value.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: duplicated section %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		if key.Value == mappingSection {
			mapping, err := decodeMapping(node)
			if err != nil {
				return err
			}
			b.Mapping = mapping
			continue
		}

		parts, err := decodePartitions(node)
		if err != nil {
			return fmt.Errorf("device %s: %w", key.Value, err)
		}
		b.Devices[key.Value] = parts
		b.Sections = append(b.Sections, key.Value)
	}
	return nil
}

func decodeMapping(node *yaml.Node) ([]DeviceMapping, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: Mapping must be a mapping", node.Line)
	}
	var out []DeviceMapping
	seen := map[string]bool{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, fmt.Errorf("line %d: duplicated device %q in Mapping", key.Line, key.Value)
		}
		seen[key.Value] = true

		m := DeviceMapping{}
		if err := val.Decode(&m); err != nil {
			return nil, fmt.Errorf("device %s: %w", key.Value, err)
		}
		m.Symbol = key.Value
		out = append(out, m)
	}
	return out, nil
}

func decodePartitions(node *yaml.Node) ([]PartitionSpec, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: device section must be a mapping of partitions", node.Line)
	}
	var out []PartitionSpec
	seen := map[string]bool{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, fmt.Errorf("line %d: duplicated partition %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		p := PartitionSpec{}
		if err := val.Decode(&p); err != nil {
			return nil, fmt.Errorf("partition %s: %w", key.Value, err)
		}
		p.Key = key.Value
		out = append(out, p)
	}
	return out, nil
}
