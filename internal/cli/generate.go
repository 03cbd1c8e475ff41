package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/logger"
)

// NewGenerateCmd prints one generated question as JSON, without a session.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		topics string
		lang   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a single question against the configured SPARQL endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			language, err := domain.ParseLanguage(lang)
			if err != nil {
				return err
			}
			store, err := loadTemplates(cfg)
			if err != nil {
				return err
			}

			log := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			source, _ := newQuestionSource(cfg, store, nil, log)
			q, err := source.Generate(cmd.Context(), domain.ParseTopics(topics), language)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		},
	}
	cmd.Flags().StringVar(&topics, "topics", "geography", "comma-separated topics")
	cmd.Flags().StringVar(&lang, "lang", string(domain.LanguageEN), "question language (es or en)")
	return cmd
}
