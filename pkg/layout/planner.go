package layout

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kairos-io/diskplan/internal/constants"
	"github.com/kairos-io/diskplan/pkg/schema"
	"github.com/kairos-io/diskplan/pkg/typecode"
)

const (
	cryptLuks   = "luks"
	labelLength = 4
)

// Plan builds the layout model from the Blockdevices section of a template.
// It either returns a complete model or every configuration problem found,
// never both. The input is not modified.
func Plan(bd schema.Blockdevices) (*Model, error) {
	var result *multierror.Error
	m := &Model{}

	mapped := map[string]bool{}
	for _, dm := range bd.Mapping {
		mapped[dm.Symbol] = true
		if dm.Name == "" {
			result = multierror.Append(result, &ConfigError{Device: dm.Symbol, Field: "name", Err: ErrMissingField})
			continue
		}
		if !safeDevice.MatchString(dm.Name) {
			result = multierror.Append(result, &ConfigError{Device: dm.Symbol, Field: "name", Err: fmt.Errorf("%q %w", dm.Name, ErrUnsafeValue)})
			continue
		}
		parts, ok := bd.Devices[dm.Symbol]
		if !ok {
			result = multierror.Append(result, &ConfigError{Device: dm.Symbol, Err: fmt.Errorf("%w: no section for mapped device", ErrUnknownDevice)})
			continue
		}

		dev := Device{Name: dm.Symbol, Path: devicePath(dm.Name)}
		m.Devices = append(m.Devices, dev)

		// sgdisk takes the next free number, so keys must count up from 1.
		last := 0
		for _, spec := range parts {
			p, errs := planPartition(dev, spec)
			result = multierror.Append(result, errs...)
			if n, err := strconv.Atoi(p.Ordinal); err == nil {
				if n != last+1 {
					result = multierror.Append(result, &ConfigError{
						Device: dev.Name, Partition: p.Key, Field: "key",
						Err: fmt.Errorf("%w: got %d, expected %d", ErrInvalidOrdinal, n, last+1),
					})
				}
				last = n
			}
			m.PartitionOrder = append(m.PartitionOrder, p)
		}
	}

	for _, section := range bd.Sections {
		if !mapped[section] {
			result = multierror.Append(result, &ConfigError{Device: section, Err: fmt.Errorf("%w in Mapping", ErrUnknownDevice)})
		}
	}

	if len(m.PartitionOrder) == 0 && result.ErrorOrNil() == nil {
		return nil, &StructuralError{Reason: "no partitions declared"}
	}

	m.MountOrder = stableRootFirst(m.PartitionOrder, (*Partition).IsRoot)
	result = multierror.Append(result, validateLayout(m)...)

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

func planPartition(dev Device, spec schema.PartitionSpec) (*Partition, []error) {
	var errs []error
	fail := func(field string, err error) {
		errs = append(errs, &ConfigError{Device: dev.Name, Partition: spec.Key, Field: field, Err: err})
	}

	p := &Partition{
		Device: dev,
		Key:    spec.Key,
		Role:   spec.Type,
		Size:   spec.Size,
	}

	ordinal, err := ordinalFromKey(spec.Key)
	if err != nil {
		fail("key", err)
	}
	p.Ordinal = ordinal

	if spec.Type == "" {
		fail("type", ErrMissingField)
	} else if code, err := typecode.Resolve(spec.Type); err != nil {
		fail("type", err)
	} else {
		p.TypeCode = code
	}

	p.Label = strings.ToUpper(spec.Label)
	if p.Label == "" {
		p.Label = strings.ToUpper(prefix(spec.Type, labelLength))
	}
	if p.Label != "" && !safeLabel.MatchString(p.Label) {
		fail("label", fmt.Errorf("%q %w", p.Label, ErrUnsafeValue))
	}

	if err := validateSize(spec.Size); err != nil {
		fail("size", err)
	}

	switch spec.Crypt {
	case "":
	case cryptLuks:
		p.Encrypted = true
		p.MappingName = strings.ToLower(p.Label)
	default:
		fail("crypt", fmt.Errorf("%w %q", ErrUnknownCrypt, spec.Crypt))
	}

	format, err := ParseFormat(spec.Format)
	if err != nil {
		fail("format", err)
	}
	p.Format = format

	switch format {
	case FormatVFAT32, FormatExt4:
		mp, err := cleanMountPoint(spec.MountPoint)
		if err != nil {
			fail("mount_point", err)
		}
		p.MountPoint = mp
		if mp == "/" && !p.IsRoot() {
			fail("mount_point", fmt.Errorf("%w: / on a %s partition", ErrRootPartition, spec.Type))
		}
		if mp != "" && mp != "/" && p.IsRoot() {
			fail("mount_point", fmt.Errorf("%w: root partition mounted at %s", ErrRootPartition, mp))
		}
	case FormatSwap:
		if p.IsRoot() {
			fail("format", fmt.Errorf("%w: root partition formatted as swap", ErrRootPartition))
		}
	case FormatBtrfs:
		p.Subvolumes = planSubvolumes(spec.Subvolumes, func(field string, err error) { fail(field, err) })
		if !p.IsRoot() {
			fail("Subvolumes", fmt.Errorf("%w: btrfs subvolumes on a %s partition", ErrRootPartition, spec.Type))
		}
	}

	return p, errs
}

func planSubvolumes(specs []schema.SubvolumeSpec, fail func(string, error)) []Subvolume {
	var subs []Subvolume
	roots := 0
	for i, s := range specs {
		field := fmt.Sprintf("Subvolumes[%d]", i)
		sub := Subvolume{Name: s.Subvolume, MountOptions: s.MountOption}
		if sub.Name == "" {
			fail(field+".subvolume", ErrMissingField)
		} else if !safeSubvolume.MatchString(sub.Name) {
			fail(field+".subvolume", fmt.Errorf("%q %w", sub.Name, ErrUnsafeValue))
		}
		if sub.MountOptions == "" {
			sub.MountOptions = constants.DefaultSubvolumeMountOptions
		} else if !safeOptions.MatchString(sub.MountOptions) {
			fail(field+".mount_option", fmt.Errorf("%q %w", sub.MountOptions, ErrUnsafeValue))
		}
		mp, err := cleanMountPoint(s.MountPoint)
		if err != nil {
			fail(field+".mount_point", err)
		}
		sub.MountPoint = mp
		if sub.IsRoot() {
			roots++
		}
		subs = append(subs, sub)
	}
	if roots != 1 {
		fail("Subvolumes", fmt.Errorf("%w, found %d", ErrSubvolumeRoot, roots))
	}
	return subs
}

// validateLayout checks the rules that span partitions.
func validateLayout(m *Model) []error {
	var errs []error

	var roots []*Partition
	for _, p := range m.PartitionOrder {
		if p.IsRoot() {
			roots = append(roots, p)
		}
	}
	switch {
	case len(roots) == 0:
		errs = append(errs, &ConfigError{Err: fmt.Errorf("%w, found none", ErrRootPartition)})
	case len(roots) > 1:
		for _, p := range roots[1:] {
			errs = append(errs, &ConfigError{
				Device: p.Device.Name, Partition: p.Key, Field: "type",
				Err: fmt.Errorf("%w, %s/%s is already root", ErrRootPartition, roots[0].Device.Name, roots[0].Key),
			})
		}
	}

	mappings := map[string]*Partition{}
	for _, p := range m.PartitionOrder {
		if !p.Encrypted || p.MappingName == "" {
			continue
		}
		if other, ok := mappings[p.MappingName]; ok {
			errs = append(errs, &ConfigError{
				Device: p.Device.Name, Partition: p.Key, Field: "label",
				Err: fmt.Errorf("%w: %s also used by %s/%s", ErrDuplicateMapping, p.MappingName, other.Device.Name, other.Key),
			})
			continue
		}
		mappings[p.MappingName] = p
	}

	type target struct {
		mountPoint string
		p          *Partition
	}
	var targets []target
	for _, p := range m.MountOrder {
		switch p.Format {
		case FormatVFAT32, FormatExt4:
			if p.MountPoint != "" {
				targets = append(targets, target{p.MountPoint, p})
			}
		case FormatBtrfs:
			for _, s := range p.OrderedSubvolumes() {
				if s.MountPoint != "" {
					targets = append(targets, target{s.MountPoint, p})
				}
			}
		}
	}
	seen := map[string]*Partition{}
	for i, t := range targets {
		if other, ok := seen[t.mountPoint]; ok {
			errs = append(errs, &ConfigError{
				Device: t.p.Device.Name, Partition: t.p.Key, Field: "mount_point",
				Err: fmt.Errorf("%w: %s also used by %s/%s", ErrDuplicateMountPoint, t.mountPoint, other.Device.Name, other.Key),
			})
			continue
		}
		seen[t.mountPoint] = t.p
		for _, later := range targets[i+1:] {
			if isBelow(t.mountPoint, later.mountPoint) {
				errs = append(errs, &ConfigError{
					Device: later.p.Device.Name, Partition: later.p.Key, Field: "mount_point",
					Err: fmt.Errorf("%w: %s must come before %s", ErrMountOrder, later.mountPoint, t.mountPoint),
				})
			}
		}
	}

	return errs
}

func devicePath(name string) string {
	if strings.HasPrefix(name, "/") {
		return path.Clean(name)
	}
	return path.Join(constants.DevDir, name)
}

// partitionPath follows the kernel naming: a "p" separates the partition
// number when the disk name ends in a digit (nvme0n1p1, mmcblk0p1).
func partitionPath(devPath, ordinal string) string {
	if devPath == "" || ordinal == "" {
		return ""
	}
	if last := devPath[len(devPath)-1]; last >= '0' && last <= '9' {
		return devPath + "p" + ordinal
	}
	return devPath + ordinal
}

// ordinalFromKey takes the trailing number of a partition key, part3 -> 3.
func ordinalFromKey(key string) (string, error) {
	i := len(key)
	for i > 0 && key[i-1] >= '0' && key[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(key[i:])
	if err != nil || n < 1 {
		return "", fmt.Errorf("%w: key %q must end in a partition number", ErrInvalidOrdinal, key)
	}
	return strconv.Itoa(n), nil
}

func cleanMountPoint(mp string) (string, error) {
	if mp == "" {
		return "", ErrMissingMountPoint
	}
	if !strings.HasPrefix(mp, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidMountPoint, mp)
	}
	if !safeMountPoint.MatchString(mp) {
		return "", fmt.Errorf("%q %w", mp, ErrUnsafeValue)
	}
	return path.Clean(mp), nil
}

// isBelow reports whether child is nested under parent.
func isBelow(child, parent string) bool {
	if parent == "/" {
		return child != "/"
	}
	return strings.HasPrefix(child, parent+"/")
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isRootRole(role string) bool {
	return typecode.IsRootRole(role)
}
