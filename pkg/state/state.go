package state

import (
	"fmt"
	"io"

	"github.com/deniswernert/go-fstab"
	internalUtils "github.com/kairos-io/diskplan/internal/utils"
	"github.com/kairos-io/diskplan/pkg/layout"
	"github.com/kairos-io/diskplan/pkg/op"
	"github.com/kairos-io/diskplan/pkg/schema"
	"github.com/spectrocloud-labs/herd"
)

type State struct {
	Model     *layout.Model
	MountRoot string // where the target system is assembled e.g. /mnt
	Phase     string // only write this phase, e.g. mount-filesystems
	Out       io.Writer

	script op.Script
	fstabs schema.FsTabs
}

func (s *State) emitter() op.Emitter {
	return op.NewEmitter(s.MountRoot)
}

// Script returns the commands rendered so far.
func (s *State) Script() *op.Script {
	return &s.script
}

// Fstabs returns the fstab entries rendered so far.
func (s *State) Fstabs() schema.FsTabs {
	return s.fstabs
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, entry := range layer {
			if entry.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", entry.Name, entry.Error.Error(), entry.Background, entry.WeakDeps, entry.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", entry.Name, entry.Background, entry.WeakDeps, entry.Executed)
			}
		}
	}
	return
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
	return e
}

// AddToFstab will try to add an entry to the fstab list
// Will check if the entry exists before adding it to avoid duplicates.
// Subvolumes share a device, so an entry is identified by device and mount point.
func (s *State) AddToFstab(tmpFstab *fstab.Mount) {
	for _, f := range s.fstabs {
		if f.Spec == tmpFstab.Spec && f.File == tmpFstab.File {
			internalUtils.Log.Debug().Interface("existing", f).Interface("duplicated", tmpFstab).Msg("Duplicated fstab entry found, not adding")
			return
		}
	}
	s.fstabs = append(s.fstabs, tmpFstab)
}
