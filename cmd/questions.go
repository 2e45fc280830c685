package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/api"
	"github.com/audiolibrelab/interviewprep/internal/output"
	"github.com/audiolibrelab/interviewprep/internal/store"
)

var questionsCmd = &cobra.Command{
	Use:     "questions",
	Aliases: []string{"q"},
	Short:   "List and manage interview questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return questionsListCmd.RunE(cmd, args)
	},
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remote and local questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		questions, err := svc.Questions(cmd.Context())
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).QuestionList(questions)
		return nil
	},
}

var questionsShowCmd = &cobra.Command{
	Use:   "show <question-id>",
	Short: "Show a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		q, err := svc.Question(cmd.Context(), api.ID(args[0]))
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Question(q)
		return nil
	},
}

var questionsAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a question",
	Long: `Add a question to the local question file. With --remote the question is
created on the interview service instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		flags := cmd.Flags()
		q := api.Question{QuestionText: strings.Join(args, " ")}
		q.Category, _ = flags.GetString("category")
		q.DifficultyLevel, _ = flags.GetString("difficulty")
		q.Role, _ = flags.GetString("role")
		remote, _ := flags.GetBool("remote")

		out := output.NewFormatter(os.Stdout)
		if remote {
			created, err := svc.Client().CreateQuestion(cmd.Context(), q)
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Question %s created", created.ID))
			return nil
		}

		added, err := svc.LocalQuestions().Add(q)
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("Question %s added", added.ID))
		return nil
	},
}

var questionsEditCmd = &cobra.Command{
	Use:   "edit <question-id>",
	Short: "Edit a local question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		var patch store.QuestionPatch
		flags := cmd.Flags()
		for name, field := range map[string]**string{
			"text":       &patch.QuestionText,
			"category":   &patch.Category,
			"difficulty": &patch.DifficultyLevel,
			"role":       &patch.Role,
			"reasoning":  &patch.Reasoning,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*field = &v
			}
		}

		q, err := svc.LocalQuestions().Update(api.ID(args[0]), patch)
		if err != nil {
			return err
		}
		out := output.NewFormatter(os.Stdout)
		out.Success(fmt.Sprintf("Question %s updated", q.ID))
		out.Question(&q)
		return nil
	},
}

var questionsDeleteCmd = &cobra.Command{
	Use:     "delete <question-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a question",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		id := api.ID(args[0])
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			err = svc.Client().DeleteQuestion(cmd.Context(), id)
		} else {
			err = svc.LocalQuestions().Delete(id)
		}
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Success(fmt.Sprintf("Question %s deleted", id))
		return nil
	},
}

var questionsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search local questions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		questions, err := svc.LocalQuestions().Search(strings.Join(args, " "))
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).QuestionList(questions)
		return nil
	},
}

var questionsFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter local questions by category, difficulty or role",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		flags := cmd.Flags()
		category, _ := flags.GetString("category")
		difficulty, _ := flags.GetString("difficulty")
		role, _ := flags.GetString("role")
		generated, _ := flags.GetBool("generated")

		local := svc.LocalQuestions()
		var questions []api.Question
		switch {
		case generated:
			questions, err = local.Generated()
		case role != "":
			questions, err = local.ByRole(role)
		default:
			questions, err = local.Filter(category, difficulty)
		}
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).QuestionList(questions)
		return nil
	},
}

var questionsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate questions for a job description",
	Long: `Ask the interview service to generate questions tailored to a job
description. Pass the description with --job-description or read it from a
file with -f. Generated questions are stored locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		description, _ := flags.GetString("job-description")
		if file, _ := flags.GetString("file"); file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read job description: %w", err)
			}
			description = string(data)
		}
		if strings.TrimSpace(description) == "" {
			return fmt.Errorf("a job description is required (--job-description or -f)")
		}

		req := api.GenerateRequest{JobDescription: strings.TrimSpace(description)}
		req.JobTitle, _ = flags.GetString("title")
		req.QuestionTypes, _ = flags.GetStringSlice("types")
		req.NumQuestionsPerType, _ = flags.GetInt("count")

		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		out := output.NewFormatter(os.Stdout)
		out.Info("Generating questions...")
		questions, err := svc.GenerateQuestions(cmd.Context(), req)
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("%d questions generated", len(questions)))
		out.QuestionList(questions)
		return nil
	},
}

func init() {
	questionsAddCmd.Flags().String("category", "behavioral", "question category")
	questionsAddCmd.Flags().String("difficulty", "", "difficulty: easy, medium or hard")
	questionsAddCmd.Flags().String("role", "", "role the question targets")
	questionsAddCmd.Flags().Bool("remote", false, "create the question on the interview service")

	questionsEditCmd.Flags().String("text", "", "question text")
	questionsEditCmd.Flags().String("category", "", "question category")
	questionsEditCmd.Flags().String("difficulty", "", "difficulty: easy, medium or hard")
	questionsEditCmd.Flags().String("role", "", "role the question targets")
	questionsEditCmd.Flags().String("reasoning", "", "why the question is asked")

	questionsDeleteCmd.Flags().Bool("remote", false, "delete the question on the interview service")

	questionsFilterCmd.Flags().String("category", "", "question category")
	questionsFilterCmd.Flags().String("difficulty", "", "difficulty: easy, medium or hard")
	questionsFilterCmd.Flags().String("role", "", "role the question targets")
	questionsFilterCmd.Flags().Bool("generated", false, "only generated questions")

	questionsGenerateCmd.Flags().String("job-description", "", "job description text")
	questionsGenerateCmd.Flags().StringP("file", "f", "", "read the job description from a file")
	questionsGenerateCmd.Flags().String("title", "", "job title")
	questionsGenerateCmd.Flags().StringSlice("types", []string{"technical", "behavioral"}, "question types: technical, behavioral, cultural")
	questionsGenerateCmd.Flags().Int("count", 3, "questions per type")

	questionsCmd.AddCommand(questionsListCmd)
	questionsCmd.AddCommand(questionsShowCmd)
	questionsCmd.AddCommand(questionsAddCmd)
	questionsCmd.AddCommand(questionsEditCmd)
	questionsCmd.AddCommand(questionsDeleteCmd)
	questionsCmd.AddCommand(questionsSearchCmd)
	questionsCmd.AddCommand(questionsFilterCmd)
	questionsCmd.AddCommand(questionsGenerateCmd)
}
