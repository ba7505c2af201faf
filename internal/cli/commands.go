// internal/cli/commands.go
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/csvutil"
	"github.com/dalemusser/campusdesk/internal/app/system/normalize"
	"github.com/dalemusser/campusdesk/internal/app/system/records"
	"github.com/dalemusser/campusdesk/internal/app/system/selection"
	"github.com/dalemusser/campusdesk/internal/app/system/xlsxexport"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"go.uber.org/zap"
)

func commands() map[string]command {
	list := []command{
		{name: "login", args: "EMAIL", summary: "sign in to the self-hosted API (password is prompted)", run: runLogin},
		{name: "logout", summary: "forget the stored API token", run: runLogout},
		{name: "status", summary: "show backend, sign-in and selection", run: runStatus},
		{name: "schools", summary: "list schools you can select", run: runSchools},
		{name: "years", summary: "list academic years of the selected school", run: runYears},
		{name: "use-school", args: "CODE", summary: "select a school (its current year is selected too)", run: runUseSchool},
		{name: "use-year", args: "YEAR_ID", summary: "select an academic year of the selected school", run: runUseYear},
		{name: "students", summary: "list students in the selected year", run: runStudents},
		{name: "add-student", summary: "add a student to the selected year", run: runAddStudent, flags: addStudentFlags},
		{name: "export", args: "FILE", summary: "export the roster to FILE (.csv or .xlsx; - for CSV on stdout)", run: runExport},
		{name: "import", args: "FILE", summary: "import a roster from FILE (.csv or .xlsx)", run: runImport},
	}
	out := make(map[string]command, len(list))
	for _, c := range list {
		out[c.name] = c
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Sign-in                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func runLogin(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, args []string) error {
	email := normalize.Email(trimmedArg(args, 0))
	if email == "" {
		return errHelp
	}
	c, err := cl.Client()
	if err != nil {
		return err
	}
	rest, ok := c.(*backend.REST)
	if !ok {
		return fmt.Errorf("login applies to the self-hosted API only; set %s=true", backend.EnvSelfHosted)
	}
	pwd, err := cl.readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if pwd == "" {
		return errors.New("password is empty")
	}
	res, err := rest.Login(ctx, email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cl.Out, "Signed in as %s (%s) until %s\n", res.User.Email, res.User.Role, res.ExpiresAt)
	return nil
}

func runLogout(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, _ []string) error {
	c, err := cl.Client()
	if err != nil {
		return err
	}
	if rest, ok := c.(*backend.REST); ok {
		if err := rest.Logout(ctx); err != nil {
			return err
		}
	} else if err := cl.State.ClearToken(); err != nil {
		return err
	}
	fmt.Fprintln(cl.Out, "Signed out")
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Selection                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// selection loads the persisted selection against the backend.
func (cl *CommandLine) selection(ctx context.Context) (*selection.Context, error) {
	c, err := cl.Client()
	if err != nil {
		return nil, err
	}
	sel := selection.New(selection.BackendDirectory{Client: c}, cl.State, cl.Log)
	if err := sel.Load(ctx); err != nil {
		return nil, err
	}
	return sel, nil
}

func runStatus(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, _ []string) error {
	c, err := cl.Client()
	if err != nil {
		return err
	}
	fmt.Fprintf(cl.Out, "Backend:  %s\n", c.Name())
	if c.Name() == backend.NameSelfHosted {
		signedIn := "no"
		if cl.State.Token() != "" {
			signedIn = "yes"
		}
		fmt.Fprintf(cl.Out, "Signed in: %s\n", signedIn)
	}
	fmt.Fprintf(cl.Out, "State:    %s\n", cl.State.Path())

	sel, err := cl.selection(ctx)
	if err != nil {
		return err
	}
	printSelection(cl.Out, sel.Snapshot())
	return nil
}

func printSelection(w io.Writer, s selection.Snapshot) {
	school := "(none)"
	if s.School != nil {
		school = fmt.Sprintf("%s %s", s.School.Code, s.School.Name)
	}
	year := "(none)"
	if s.Year != nil {
		year = fmt.Sprintf("%s %s", s.Year.Name, yearFlags(*s.Year))
	}
	fmt.Fprintf(w, "School:   %s\n", school)
	fmt.Fprintf(w, "Year:     %s\n", strings.TrimSpace(year))
	if s.Resolved() && s.IsReadOnly() {
		fmt.Fprintln(w, "Mode:     read-only")
	}
}

func yearFlags(y models.AcademicYear) string {
	var f []string
	if y.IsCurrent {
		f = append(f, "current")
	}
	if y.IsArchived {
		f = append(f, "archived")
	}
	if len(f) == 0 {
		return ""
	}
	return "(" + strings.Join(f, ", ") + ")"
}

func runSchools(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, _ []string) error {
	sel, err := cl.selection(ctx)
	if err != nil {
		return err
	}
	snap := sel.Snapshot()
	tw := tabwriter.NewWriter(cl.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tCODE\tNAME")
	for _, s := range snap.Schools {
		mark := ""
		if snap.School != nil && snap.School.ID == s.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", mark, s.Code, s.Name)
	}
	return tw.Flush()
}

func runYears(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, _ []string) error {
	sel, err := cl.selection(ctx)
	if err != nil {
		return err
	}
	snap := sel.Snapshot()
	if snap.School == nil {
		return backend.ContextError("no school selected; run `campusctl use-school CODE`")
	}
	tw := tabwriter.NewWriter(cl.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tSTART\tEND\t")
	for _, y := range snap.Years {
		mark := ""
		if snap.Year != nil && snap.Year.ID == y.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, y.ID, y.Name, y.StartDate, y.EndDate, yearFlags(y))
	}
	return tw.Flush()
}

func runUseSchool(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, args []string) error {
	code := normalize.SchoolCode(trimmedArg(args, 0))
	if code == "" {
		return errHelp
	}
	sel, err := cl.selection(ctx)
	if err != nil {
		return err
	}
	if err := sel.SelectSchool(ctx, code); err != nil {
		return err
	}
	printSelection(cl.Out, sel.Snapshot())
	return nil
}

func runUseYear(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, args []string) error {
	id := trimmedArg(args, 0)
	if id == "" {
		return errHelp
	}
	sel, err := cl.selection(ctx)
	if err != nil {
		return err
	}
	if err := sel.SelectYear(id); err != nil {
		return err
	}
	printSelection(cl.Out, sel.Snapshot())
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Roster                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// students binds the roster to the persisted selection. The CLI runs one
// command per process so no cache is kept.
func (cl *CommandLine) students(ctx context.Context) (records.Students, error) {
	sel, err := cl.selection(ctx)
	if err != nil {
		return records.Students{}, err
	}
	return records.Students{Hooks: &records.Hooks{Client: cl.client, Selection: sel, Log: cl.Log}}, nil
}

func runStudents(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, _ []string) error {
	st, err := cl.students(ctx)
	if err != nil {
		return err
	}
	list, err := st.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cl.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tGRADE\tSTATUS")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.StudentNumber, s.FullName(), s.GradeLevel, s.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cl.Out, "%d student(s)\n", len(list))
	return nil
}

func addStudentFlags(fs *flag.FlagSet) {
	fs.String("number", "", "student number (required)")
	fs.String("first", "", "first name (required)")
	fs.String("last", "", "last name (required)")
	fs.String("grade", "", "grade level")
	fs.String("status", "", "enrolled, withdrawn or graduated (default enrolled)")
}

func runAddStudent(ctx context.Context, cl *CommandLine, fs *flag.FlagSet, _ []string) error {
	get := func(name string) string { return fs.Lookup(name).Value.String() }
	if strings.TrimSpace(get("number")) == "" {
		return errHelp
	}
	st, err := cl.students(ctx)
	if err != nil {
		return err
	}
	out, err := st.Create(ctx, models.Student{
		StudentNumber: get("number"),
		FirstName:     get("first"),
		LastName:      get("last"),
		GradeLevel:    get("grade"),
		Status:        get("status"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cl.Out, "Added %s %s (id %s)\n", out.StudentNumber, out.FullName(), out.ID)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Files                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func runExport(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, args []string) error {
	path := trimmedArg(args, 0)
	if path == "" {
		return errHelp
	}
	ext := strings.ToLower(filepath.Ext(path))
	if path != "-" && ext != ".csv" && ext != ".xlsx" {
		return fmt.Errorf("export file must end in .csv or .xlsx")
	}

	st, err := cl.students(ctx)
	if err != nil {
		return err
	}
	list, err := st.List(ctx)
	if err != nil {
		return err
	}

	if path == "-" {
		return csvutil.WriteStudentsCSV(cl.Out, list)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if ext == ".xlsx" {
		err = xlsxexport.WriteStudents(bw, list)
	} else {
		err = csvutil.WriteStudentsCSV(bw, list)
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	cl.Log.Info("roster exported", zap.String("file", path), zap.Int("students", len(list)))
	fmt.Fprintf(cl.Out, "Exported %d student(s) to %s\n", len(list), path)
	return nil
}

func runImport(ctx context.Context, cl *CommandLine, _ *flag.FlagSet, args []string) error {
	path := trimmedArg(args, 0)
	if path == "" {
		return errHelp
	}
	parsed, err := parseRoster(path)
	if err != nil {
		return err
	}
	if parsed.HasErrors() {
		fmt.Fprintln(cl.Err, parsed.FormatErrors(10))
		return fmt.Errorf("%s was not imported", path)
	}

	list := make([]models.Student, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		list = append(list, row.Student())
	}
	st, err := cl.students(ctx)
	if err != nil {
		return err
	}
	res, err := st.Import(ctx, list)
	if err != nil {
		return err
	}
	fmt.Fprintf(cl.Out, "Imported %d student(s)", len(res.Created))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(cl.Out, "; skipped %d already on the roster: %s", len(res.Skipped), strings.Join(res.Skipped, ", "))
	}
	fmt.Fprintln(cl.Out)
	return nil
}

func parseRoster(path string) (*csvutil.ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > csvutil.MaxUploadSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, csvutil.MaxUploadSize)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvutil.ParseStudentsCSV(f, csvutil.DefaultParseOptions())
	case ".xlsx":
		recs, err := xlsxexport.ReadRows(f)
		if err != nil {
			return nil, err
		}
		return csvutil.FromRecords(recs, csvutil.DefaultParseOptions())
	}
	return nil, fmt.Errorf("import file must end in .csv or .xlsx")
}
