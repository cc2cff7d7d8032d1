package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/studyassist/internal/exam"
	"github.com/pavelanni/studyassist/internal/model"
)

func examCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Generate an exam for a lecture and answer it interactively",
		Long: `Generate an exam and walk through it. At the prompt:
  n, p        next / previous question
  g           submit the current answer for grading
  q           quit
  anything    record it as the answer (for multiple choice, an option number or its text)`,
		Args: cobra.NoArgs,
		RunE: runExam,
	}
	f := cmd.Flags()
	f.StringP("course", "c", "", "Course name")
	f.String("lecture", "", "Lecture name")
	f.String("type", string(model.ExamMultipleChoice), "Exam type (multiple-choice, essay)")
	f.StringP("difficulty", "d", string(model.DifficultyEasy), "Difficulty (easy, medium, hard)")
	f.StringP("transcript", "o", "", "Write questions, answers and last feedback as JSON to this file (- for stdout)")
	return cmd
}

func runExam(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := openLecture(e, model.ViewExam); err != nil {
		return err
	}
	s := e.app.Exam
	if err := s.Configure(e.ctx, model.ExamType(e.v.GetString("type")), model.Difficulty(e.v.GetString("difficulty"))); err != nil {
		return err
	}
	if err := s.Generate(e.ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())
	printQuestion(out, s)
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "q", "quit":
			return writeTranscript(cmd, e, s)
		case "n", "next":
			s.Next()
			printQuestion(out, s)
		case "p", "prev":
			s.Prev()
			printQuestion(out, s)
		case "g", "grade":
			if feedback, err := s.Grade(e.ctx); err == nil {
				fmt.Fprintln(out, feedback)
			}
		default:
			if err := s.Answer(e.ctx, resolveAnswer(s, line)); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), model.MessageOf(err, err.Error()))
			}
		}
	}
	if err := in.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return writeTranscript(cmd, e, s)
}

func printQuestion(w io.Writer, s *exam.Session) {
	q, ok := s.Current()
	if !ok {
		return
	}
	fmt.Fprintf(w, "\nQuestion %d of %d\n%s\n", s.Cursor()+1, s.Len(), q.Text)
	for i, o := range q.Options {
		fmt.Fprintf(w, "  %d. %s\n", i+1, o)
	}
	if a := s.AnswerFor(q.ID); a != "" {
		fmt.Fprintf(w, "Your answer: %s\n", a)
	}
}

// resolveAnswer maps an option number to its text for multiple-choice questions.
func resolveAnswer(s *exam.Session, line string) string {
	q, ok := s.Current()
	if !ok || q.Kind != model.KindMultipleChoice {
		return line
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1]
	}
	return line
}

func writeTranscript(cmd *cobra.Command, e *env, s *exam.Session) error {
	outPath := e.v.GetString("transcript")
	if outPath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.Transcript(e.app.Session.Current().Username), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
