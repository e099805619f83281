package main

import (
	"github.com/spf13/cobra"

	"github.com/defi-academy/navigator/internal/domain/quiz"
)

func newGradeCmd(c *cli) *cobra.Command {
	var answers []int

	cmd := &cobra.Command{
		Use:     "grade <quiz-id>",
		Short:   "Grade a set of answers against a catalog quiz",
		Example: "  navigatorctl grade defi-basics --answers 1,1,1,2,2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.loadCatalog()
			if err != nil {
				return err
			}
			def, err := cat.Quiz(args[0])
			if err != nil {
				return err
			}
			result, err := quiz.Grade(answers, def)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntSliceVar(&answers, "answers", nil, "selected option index per question, in order")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}
