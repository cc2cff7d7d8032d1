package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pavelanni/studyassist/internal/advisory"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/upload"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and keep the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, args, false)
		},
	}
	cmd.Flags().StringP("password", "p", "", "Password (prompted when empty)")
	return cmd
}

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account and log in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, args, true)
		},
	}
	cmd.Flags().StringP("password", "p", "", "Password (prompted when empty)")
	return cmd
}

func runAuth(cmd *cobra.Command, args []string, register bool) error {
	e, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	username := ""
	if len(args) > 0 {
		username = args[0]
	} else if username, err = prompt(cmd, in, "Username: "); err != nil {
		return err
	}
	password := e.v.GetString("password")
	if password == "" {
		if password, err = readPassword(cmd, in); err != nil {
			return err
		}
	}

	if register {
		_, err = e.app.Session.Register(e.ctx, username, password)
	} else {
		_, err = e.app.Session.Login(e.ctx, username, password)
	}
	return err
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return prompt(cmd, in, "Password: ")
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()
			e.app.Logout(e.ctx)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()
			fmt.Fprintln(cmd.OutOrStdout(), e.app.Session.Current().Username)
			return nil
		},
	}
}

func coursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List or create courses",
		Args:  cobra.NoArgs,
		RunE:  runListCourses,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your courses",
			Args:  cobra.NoArgs,
			RunE:  runListCourses,
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a course",
			Args:  cobra.ExactArgs(1),
			RunE:  runCreateCourse,
		},
	)
	return cmd
}

func runListCourses(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	e.app.Navigate(e.ctx, model.ViewCourses)
	if msg := e.app.Courses.InlineError(); msg != "" {
		return model.NewError(model.KindServer, msg)
	}
	for _, c := range e.app.Courses.List() {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

func runCreateCourse(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	e.app.Navigate(e.ctx, model.ViewCourses)
	if err := e.app.Courses.Create(e.ctx, args[0]); err != nil {
		return err
	}
	for _, c := range e.app.Courses.List() {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

func lecturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lectures",
		Short: "List the lectures of a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.app.OpenCourse(e.ctx, e.v.GetString("course")); err != nil {
				return err
			}
			if msg := e.app.Lectures.InlineError(); msg != "" {
				return model.NewError(model.KindServer, msg)
			}
			for _, l := range e.app.Lectures.List() {
				fmt.Fprintln(cmd.OutOrStdout(), l.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringP("course", "c", "", "Course name")
	return cmd
}

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a PDF lecture to a course",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}
	f := cmd.Flags()
	f.StringP("course", "c", "", "Course name")
	f.StringP("name", "n", "", "Lecture name (letters, digits, '_' and '-'; default: file name)")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.app.OpenCourse(e.ctx, e.v.GetString("course")); err != nil {
		return err
	}

	path := args[0]
	content, err := readLimited(path, upload.MaxFileSize)
	if err != nil {
		return err
	}
	name := e.v.GetString("name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	e.app.Upload.SetLectureName(name)
	e.app.Upload.SetFile(filepath.Base(path), content)

	// Ctrl-C cancels the transfer instead of killing the process.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			e.app.Upload.Cancel()
		}
	}()

	if err := e.app.Upload.Upload(e.ctx); err != nil {
		if model.IsKind(err, model.KindCancelled) {
			return nil
		}
		return err
	}
	for _, l := range e.app.Lectures.List() {
		fmt.Fprintln(cmd.OutOrStdout(), l.Name)
	}
	return nil
}

// readLimited reads at most limit+1 bytes of path, enough for the upload
// checks to see that an oversize file is too large.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

func resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Show server memory and disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()

			usage, err := e.app.API.Resources(e.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "memory: %.1f%% (warn above %.0f%%)\n", usage.MemoryPercent, advisory.MemoryThreshold)
			fmt.Fprintf(cmd.OutOrStdout(), "disk:   %.1f%% (warn above %.0f%%)\n", usage.DiskPercent, advisory.DiskThreshold)
			if advisory.Exceeds(usage) {
				e.app.Advisory.Raise(e.ctx)
			}
			return nil
		},
	}
}

func studyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Generate study material for a lecture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := openLecture(e, model.ViewStudy); err != nil {
				return err
			}
			if err := e.app.Study.SetTask(e.ctx, model.StudyTask(e.v.GetString("task"))); err != nil {
				return err
			}
			e.app.Study.SetQuestion(e.v.GetString("question"))
			content, err := e.app.Study.Generate(e.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringP("course", "c", "", "Course name")
	f.String("lecture", "", "Lecture name")
	f.StringP("task", "t", string(model.TaskSummarize), `Task ("Summarize", "Explain", "Examples", "Custom Question")`)
	f.StringP("question", "q", "", "Question for the \"Custom Question\" task")
	return cmd
}

// openLecture walks courses -> lectures -> next the way the views do.
func openLecture(e *env, next model.View) error {
	if _, err := e.app.OpenCourse(e.ctx, e.v.GetString("course")); err != nil {
		return err
	}
	_, err := e.app.OpenLecture(e.ctx, e.v.GetString("lecture"), next)
	return err
}
