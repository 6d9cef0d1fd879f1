package typecode

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
)

// ErrUnknownRole is returned when a role keyword has no GPT type code.
var ErrUnknownRole = errors.New("unknown partition type")

const rootPrefix = "root"

// GUIDs come from:
// - https://en.wikipedia.org/wiki/GUID_Partition_Table#Partition_type_GUIDs
// - https://uapi-group.org/specifications/specs/discoverable_partitions_specification/
var registry = map[string]string{
	"esp":          "C12A7328-F81F-11D2-BA4B-00A0C93EC93B",
	"boot":         "BC13C2FF-59E6-4262-A352-B275FD6F7172",
	"swap":         "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F",
	"home":         "933AC7E1-2EB4-4F13-B844-0E14E2AEF915",
	"srv":          "3B8F8425-20E0-4F3B-907F-1A25A76F98E8",
	"var":          "4D21B016-B534-45C2-A9FB-5C16E091FD2D",
	"tmp":          "7EC6F557-3BC5-4ACA-B293-16EF5DF639D1",
	"linux":        "0FC63DAF-8483-4772-8E79-3D69D8477DE4",
	"root_x86":     "44479540-F297-41B2-9AF7-D131D5F0458A",
	"root_x86-64":  "4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709",
	"root_arm":     "69DAD710-2CE4-4E3C-B16C-21A1D49ABED3",
	"root_arm64":   "B921B045-1DF0-41C3-AF44-4C6F280D3FAE",
	"root_riscv64": "72EC70A6-CF74-40E6-BD49-4BDA08E8F224",
}

// Resolve returns the GPT partition type GUID for a role keyword.
// A role that already is a GUID is passed through upper-cased.
func Resolve(role string) (string, error) {
	if code, ok := registry[role]; ok {
		return code, nil
	}
	if id, err := uuid.FromString(role); err == nil && strings.Count(role, "-") == 4 {
		return strings.ToUpper(id.String()), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRole, role)
}

// IsRootRole reports whether the role describes a root filesystem partition.
func IsRootRole(role string) bool {
	return strings.HasPrefix(role, rootPrefix)
}

// Roles returns the known role keywords in alphabetical order.
func Roles() []string {
	roles := make([]string, 0, len(registry))
	for r := range registry {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
