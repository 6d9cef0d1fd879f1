package schema

import "github.com/deniswernert/go-fstab"

// Template is the parsed install template. Only the Blockdevices section is
// consumed here, other sections belong to other installer stages.
type Template struct {
	Blockdevices Blockdevices `yaml:"Blockdevices"`
}

// Blockdevices keeps devices and partitions in document order.
type Blockdevices struct {
	// Mapping from symbolic device name to a real device, in declaration order.
	Mapping []DeviceMapping
	// Partitions per symbolic device name, in declaration order.
	Devices map[string][]PartitionSpec
	// Sections in the order they appear, used to report sections without mapping.
	Sections []string
}

type DeviceMapping struct {
	Symbol string `yaml:"-"`
	// e.g. sda, nvme0n1 or /dev/vda
	Name string `yaml:"name"`
}

type PartitionSpec struct {
	// Key is the partition key in the device section, e.g. part1
	Key        string          `yaml:"-"`
	Type       string          `yaml:"type"`
	Size       string          `yaml:"size"`
	Format     string          `yaml:"format"`
	Label      string          `yaml:"label,omitempty"`
	Crypt      string          `yaml:"crypt,omitempty"`
	MountPoint string          `yaml:"mount_point,omitempty"`
	Subvolumes []SubvolumeSpec `yaml:"Subvolumes,omitempty"`
}

type SubvolumeSpec struct {
	Subvolume   string `yaml:"subvolume"`
	MountPoint  string `yaml:"mount_point,omitempty"`
	MountOption string `yaml:"mount_option,omitempty"`
}

type FsTabs []*fstab.Mount
