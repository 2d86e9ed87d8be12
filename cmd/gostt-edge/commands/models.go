package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-edge/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and download model files",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models and whether their files are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tFILE\tINSTALLED")
		for _, art := range models.Catalog() {
			installed := "no"
			if models.Installed(cfg.ModelsDir, art) {
				installed = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", art.Model, art.Name, installed)
		}
		return w.Flush()
	},
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull [model]",
	Short: "Download a model's files into models_dir",
	Long: `Download the files a model needs into models_dir. Defaults to the
configured model. Files already present are kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.Model
		if len(args) == 1 {
			name = args[0]
		}
		paths, err := models.EnsureModel(cmd.Context(), name, cfg.ModelsDir, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		for _, p := range paths {
			logger.Info("model file ready", "path", p)
		}
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsPullCmd)

	rootCmd.AddCommand(modelsCmd)
}
