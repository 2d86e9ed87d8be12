package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-edge/internal/asr"
	"github.com/chaz8081/gostt-edge/internal/decode"
)

var geometryCmd = &cobra.Command{
	Use:   "geometry [model]",
	Short: "Show a model's input framing",
	Long: `Show how a model cuts audio into windows: feature framing, context
sizes, the window length callers must supply and the advance between
windows. Defaults to the configured model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.Model
		if len(args) == 1 {
			name = args[0]
		}
		mc, err := asr.Lookup(name)
		if err != nil {
			return fmt.Errorf("%w (registered: %v)", err, asr.Names())
		}
		g := mc.Geometry
		layout, err := decode.NewOutputLayout(g.NumVectors, g.LeftContext, g.RightContext, mc.OutputStride, mc.Classes())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "model\t%s\n", mc.Name)
		fmt.Fprintf(w, "model file\t%s\n", mc.ModelFile)
		fmt.Fprintf(w, "sample rate\t%d Hz\n", g.SampleRate)
		fmt.Fprintf(w, "frame / window / stride\t%d / %d / %d samples\n", g.FrameLen, g.WindowLen, g.WindowStride)
		fmt.Fprintf(w, "features\t%d x %d vectors\n", g.NumFeatures, g.NumVectors)
		fmt.Fprintf(w, "context (left / inner / right)\t%d / %d / %d vectors\n", g.LeftContext, g.InnerContext(), g.RightContext)
		fmt.Fprintf(w, "required input samples\t%d\n", g.RequiredInputSamples())
		fmt.Fprintf(w, "advance offset\t%d samples (%.2fs)\n", g.AdvanceOffset(), float64(g.AdvanceOffset())/float64(g.SampleRate))
		fmt.Fprintf(w, "input tensor\t%v %s scale=%g zp=%d\n", mc.Input.Shape, mc.Input.DType, mc.Input.Quant.Scale, mc.Input.Quant.ZeroPoint)
		fmt.Fprintf(w, "output rows (left / inner / right)\t%d (%d / %d / %d) x %d classes\n",
			layout.Rows, layout.LeftRows, layout.InnerRows, layout.RightRows, layout.Cols)
		fmt.Fprintf(w, "operators\t%v\n", mc.Ops)
		fmt.Fprintf(w, "arena\t%d bytes\n", mc.ArenaSize)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(geometryCmd)
}
