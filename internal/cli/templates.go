package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/config"
)

// NewTemplatesCmd lists the loaded question templates.
func NewTemplatesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List question templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := loadTemplates(cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLANG\tTOPICS\tQUESTION")
			for _, t := range store.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Language, strings.Join(t.Topics, ","), t.QuestionPattern)
			}
			return w.Flush()
		},
	}
}
