package dag

import (
	cnst "github.com/kairos-io/diskplan/internal/constants"
	"github.com/kairos-io/diskplan/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterInstall registers the dag that renders an install script.
// Partitions, filesystems and mounts depend on each other in that order, the
// fstab is optional and the script is only written once everything rendered.
// Every op is fatal so a failed phase stops the run with its error.
// Nothing here touches a disk.
func RegisterInstall(s *state.State, g *herd.Graph, withFstab bool) error {
	var err error

	if err = s.LogIfErrorAndReturn(s.CreatePartitionsDagStep(g, herd.FatalOp), "create partitions"); err != nil {
		return err
	}

	if err = s.LogIfErrorAndReturn(s.CreateFilesystemsDagStep(g, herd.WithDeps(cnst.OpCreatePartitions), herd.FatalOp), "create filesystems"); err != nil {
		return err
	}

	if err = s.LogIfErrorAndReturn(s.MountFilesystemsDagStep(g, herd.WithDeps(cnst.OpCreateFilesystems), herd.FatalOp), "mount filesystems"); err != nil {
		return err
	}

	scriptDeps := []string{cnst.OpCreatePartitions, cnst.OpCreateFilesystems, cnst.OpMountFilesystems}
	if withFstab {
		if err = s.LogIfErrorAndReturn(s.WriteFstabDagStep(g, herd.WithDeps(cnst.OpMountFilesystems), herd.FatalOp), "write fstab"); err != nil {
			return err
		}
		scriptDeps = append(scriptDeps, cnst.OpWriteFstab)
	}

	return s.LogIfErrorAndReturn(s.WriteScriptDagStep(g, herd.WithDeps(scriptDeps...), herd.FatalOp), "write script")
}
