package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/anchorsync/internal/pose"
	"github.com/roach88/anchorsync/internal/reanchor"
)

// OffsetOptions holds flags for the offset command.
type OffsetOptions struct {
	*RootOptions
	Root   string
	Target string
}

// OffsetResult is the data payload of the offset command.
type OffsetResult struct {
	Root   string `json:"root"`
	Target string `json:"target"`
	Offset string `json:"offset"`
}

// NewOffsetCommand creates the offset command.
func NewOffsetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OffsetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "offset",
		Short: "Compute the world-locking correction between two poses",
		Long: `Print the offset that carries --target onto --root.

Poses are written x,y,z@w,qx,qy,qz; the orientation part may be omitted
for an identity rotation.

Example:
  anchorsync offset --root 1,0,0@1,0,0,0 --target 0,0,0@0.7071068,0,0.7071068,0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOffset(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", "", "pose the anchor should return to")
	cmd.Flags().StringVar(&opts.Target, "target", "", "pose the anchor was moved to")
	_ = cmd.MarkFlagRequired("root")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runOffset(opts *OffsetOptions, cmd *cobra.Command) error {
	root, err := pose.Parse(opts.Root)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --root", err)
	}
	target, err := pose.Parse(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --target", err)
	}

	offset := reanchor.Offset(root, target)
	return opts.formatter(cmd).Success(offset.String(), OffsetResult{
		Root:   root.String(),
		Target: target.String(),
		Offset: offset.String(),
	})
}
