package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"razza-canvas-server/modules/library"
)

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect the reference image library",
	}
	cmd.AddCommand(newLibraryListCmd())
	return cmd
}

func newLibraryListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List reference images by category and subcategory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newBaseApp()
			if err != nil {
				return err
			}
			defer a.close()

			lib, err := a.newLibrary(cmd.Context())
			if err != nil {
				return err
			}

			images := lib.ListAvailableImages(cmd.Context())
			library.SortImages(images)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSUBCATEGORY\tFILE\tMIME")
			shown := 0
			for _, img := range images {
				if category != "" && img.Category != category {
					continue
				}
				sub := img.Subcategory
				if sub == "" {
					sub = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.Category, sub, img.Filename, library.MIMEType(img.Filename))
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d image(s)\n", shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only show one category")
	return cmd
}
