package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	cnst "github.com/kairos-io/diskplan/internal/constants"
	"github.com/kairos-io/diskplan/internal/utils"
	"github.com/kairos-io/diskplan/internal/version"
	"github.com/kairos-io/diskplan/pkg/dag"
	"github.com/kairos-io/diskplan/pkg/layout"
	"github.com/kairos-io/diskplan/pkg/schema"
	"github.com/kairos-io/diskplan/pkg/state"
	"github.com/kairos-io/diskplan/pkg/typecode"
	"github.com/samber/lo"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

// Options is the resolved configuration of a single run.
type Options struct {
	utils.Config
	Phase  string
	DryRun bool
}

var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "env file with DISKPLAN_* settings",
		Value:   cnst.DefaultConfigFile,
		EnvVars: []string{cnst.EnvPrefix + "CONFIG"},
	},
	&cli.StringFlag{
		Name:    "template",
		Aliases: []string{"t"},
		Usage:   "template with the Blockdevices section",
	},
	&cli.StringFlag{
		Name:  "mount-root",
		Usage: "where the target system gets assembled",
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write the script to this file instead of stdout",
	},
	&cli.BoolFlag{
		Name:  "fstab",
		Usage: "append the fstab of the installed system to the script",
	},
	&cli.StringFlag{
		Name:  "phase",
		Usage: "only print the commands of one phase",
	},
	&cli.BoolFlag{
		Name:  "dry-run",
		Usage: "print the dag and exit",
	},
	&cli.BoolFlag{
		Name: "debug",
	},
}

var Commands = []*cli.Command{
	{
		Name:      "validate",
		Usage:     "validate a template",
		UsageText: "validate [template]",
		Description: `
Plans the layout without rendering any command and prints a summary of it.
Every configuration error is reported, not only the first one.
`,
		Action: func(c *cli.Context) error {
			opts, err := OptionsFromContext(c)
			if err != nil {
				return err
			}
			m, err := PlanTemplate(vfs.OSFS, opts.Template)
			if err != nil {
				return err
			}
			for _, l := range m.Summary() {
				fmt.Fprintln(c.App.Writer, l)
			}
			return nil
		},
	},
	{
		Name:  "roles",
		Usage: "list the known partition roles",
		Action: func(c *cli.Context) error {
			return WriteRoles(c.App.Writer)
		},
	},
	{
		Name:  "version",
		Usage: "version",
		Action: func(c *cli.Context) error {
			v := version.Get()
			utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("diskplan")
			fmt.Fprintln(c.App.Writer, v.String())
			return nil
		},
	},
}

// OptionsFromContext merges the config file, the environment and the flags,
// in increasing priority. A positional argument is taken as the template.
func OptionsFromContext(c *cli.Context) (Options, error) {
	cfg, err := utils.LoadConfig(c.String("config"), c.IsSet("config"))
	if err != nil {
		return Options{}, err
	}
	if c.IsSet("template") {
		cfg.Template = c.String("template")
	}
	if c.Args().Present() {
		cfg.Template = c.Args().First()
	}
	if c.IsSet("mount-root") {
		cfg.MountRoot = c.String("mount-root")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("fstab") {
		cfg.Fstab = c.Bool("fstab")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	utils.SetLogger(cfg.Debug)

	opts := Options{Config: cfg, Phase: c.String("phase"), DryRun: c.Bool("dry-run")}
	if opts.Template == "" {
		return opts, errors.New("no template given, use --template or " + cnst.EnvPrefix + "TEMPLATE")
	}
	if opts.Phase != "" && !lo.Contains(cnst.Phases(), opts.Phase) {
		return opts, fmt.Errorf("unknown phase %q, expected one of %v", opts.Phase, cnst.Phases())
	}
	return opts, nil
}

// PlanTemplate loads and plans a template. Each configuration error is logged
// on its own before the aggregate is returned.
func PlanTemplate(fs vfs.FS, path string) (*layout.Model, error) {
	t, err := schema.Load(fs, path)
	if err != nil {
		return nil, err
	}
	m, err := layout.Plan(t.Blockdevices)
	if err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.WrappedErrors() {
				utils.Log.Error().Err(e).Str("template", path).Msg("Invalid layout")
			}
			return nil, fmt.Errorf("template %s has %d errors: %w", path, len(merr.WrappedErrors()), err)
		}
		utils.Log.Error().Err(err).Str("template", path).Msg("Invalid layout")
		return nil, err
	}
	return m, nil
}

// Plan renders the install script for opts.Template to stdout or opts.Output.
// The output file is only written once every phase rendered.
func Plan(ctx context.Context, fs vfs.FS, opts Options, stdout io.Writer) error {
	root, err := layout.CleanMountRoot(opts.MountRoot)
	if err != nil {
		return fmt.Errorf("invalid mount root: %w", err)
	}

	m, err := PlanTemplate(fs, opts.Template)
	if err != nil {
		return err
	}
	for _, l := range m.Summary() {
		utils.Log.Info().Msg(l)
	}

	if utils.IsMounted(root) {
		utils.Log.Warn().Str("what", root).Msg("Mount root is already in use on this host")
	}

	out := &bytes.Buffer{}
	s := &state.State{
		Model:     m,
		MountRoot: root,
		Phase:     opts.Phase,
		Out:       out,
	}

	g := herd.DAG(herd.EnableInit)
	if err = dag.RegisterInstall(s, g, opts.Fstab); err != nil {
		return err
	}
	utils.Log.Info().Msg(s.WriteDAG(g))

	// Once we print the dag we can exit already
	if opts.DryRun {
		return nil
	}

	err = g.Run(ctx)
	s.LogIfError(err, "rendering script")
	utils.Log.Debug().Msg(s.WriteDAG(g))
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err = fs.WriteFile(opts.Output, out.Bytes(), 0o755); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		utils.Log.Info().Str("what", opts.Output).Msg("Script written")
		return nil
	}
	_, err = stdout.Write(out.Bytes())
	return err
}

// WriteRoles lists every role with its GPT type code.
func WriteRoles(w io.Writer) error {
	for _, r := range typecode.Roles() {
		code, err := typecode.Resolve(r)
		if err != nil {
			return err
		}
		if _, err = fmt.Fprintf(w, "%-14s %s\n", r, code); err != nil {
			return err
		}
	}
	return nil
}
