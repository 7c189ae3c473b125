package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/rca"
	"github.com/spf13/cobra"
)

var (
	rcaAnswers string
	rcaOut     string
)

var rcaCmd = &cobra.Command{
	Use:   "rca",
	Short: "Render an IBM MQ root cause analysis report",
	Long: `Render an 11-section RCA report from an answers file, or ask the
questions interactively when no file is given. Free-text answers may span
several lines and end with an empty line.

Examples:
  logpilot rca --answers incident.yaml --out IBM_MQ_RCA_Report.txt
  logpilot rca`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRCA(os.Stdin, os.Stdout)
	},
}

func init() {
	rcaCmd.Flags().StringVar(&rcaAnswers, "answers", "", "YAML file with the report answers")
	rcaCmd.Flags().StringVarP(&rcaOut, "out", "o", "", "Write the report to a file instead of stdout")
}

func runRCA(in io.Reader, out io.Writer) error {
	var (
		answers *rca.Answers
		err     error
	)
	if rcaAnswers != "" {
		answers, err = rca.Load(rcaAnswers)
		if err != nil {
			return err
		}
	} else {
		answers = askQuestions(bufio.NewReader(in), out)
	}

	if err := answers.Validate(); err != nil {
		return err
	}
	report, err := rca.Render(answers)
	if err != nil {
		return err
	}

	if rcaOut == "" {
		fmt.Fprint(out, report)
		return nil
	}
	if err := os.WriteFile(rcaOut, []byte(report), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintln(out, successStyle.Render("✓ Report written to "+rcaOut))
	return nil
}

// askQuestions walks the questionnaire. Choice questions repeat until a
// valid choice is given; an empty answer keeps the example.
func askQuestions(r *bufio.Reader, w io.Writer) *rca.Answers {
	var a rca.Answers
	for _, q := range rca.Questions() {
		for {
			prompt := q.Prompt
			switch {
			case len(q.Choices) > 0:
				prompt += " (" + strings.Join(q.Choices, " / ") + ")"
			case q.Example != "":
				prompt += dimStyle.Render(" [" + q.Example + "]")
			}
			fmt.Fprintln(w, headerStyle.Render("? ")+prompt)

			value, eof := readAnswer(r, w, len(q.Choices) > 0)
			if value == "" {
				value = q.Example
			}
			if len(q.Choices) > 0 {
				choice, ok := rca.MatchChoice(value, q.Choices)
				if !ok && !eof {
					fmt.Fprintln(w, warnStyle.Render("  choose one of: "+strings.Join(q.Choices, ", ")))
					continue
				}
				if ok {
					value = choice
				}
			}
			q.Set(&a, value)
			break
		}
	}
	return &a
}

// readAnswer reads lines until an empty line or EOF, reporting EOF. A single
// answer stops after the first line.
func readAnswer(r *bufio.Reader, w io.Writer, single bool) (string, bool) {
	var lines []string
	for {
		fmt.Fprint(w, "> ")
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			return strings.Join(lines, "\n"), true
		}
		if line == "" || single {
			return strings.Join(lines, "\n"), false
		}
	}
}
