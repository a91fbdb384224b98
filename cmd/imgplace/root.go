package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/config"
	"github.com/kittyplace/imgplace/pkg/formula"
	"github.com/kittyplace/imgplace/pkg/terminal"
)

var (
	flagCols        string
	flagRows        string
	flagScale       float64
	flagMaxCols     int
	flagMaxRows     int
	flagForceUpload bool
	flagNoUpload    bool
	flagForceID     uint32
	flagIDSpace     string
	flagIDSubspace  string
	flagUploadMethod string
	flagOutDisplay  string
	flagOutCommand  string
	flagUseLineFeeds string
	flagAll         bool
	flagOlder       string
	flagNewer       string
	flagLast        int
	flagExceptLast  int
	flagPrint       string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imgplace [flags] PATH",
		Short:         "Display images in Kitty-Graphics-Protocol terminals using Unicode placeholder cells",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runDisplay,
	}

	f := root.PersistentFlags()
	f.StringVarP(&flagCols, "cols", "c", "", "terminal columns to occupy; a number or a formula over cx/cy (empty: derive from aspect ratio)")
	f.StringVarP(&flagRows, "rows", "r", "", "terminal rows to occupy; a number or a formula over cx/cy (empty: derive from aspect ratio)")
	f.Float64VarP(&flagScale, "scale", "s", 0, "per-call size multiplier")
	f.IntVar(&flagMaxCols, "max-cols", 0, "cap on auto-derived column count")
	f.IntVar(&flagMaxRows, "max-rows", 0, "cap on auto-derived row count")
	f.BoolVarP(&flagForceUpload, "force-upload", "f", false, "upload even if the terminal already has a fresh copy")
	f.BoolVarP(&flagNoUpload, "no-upload", "n", false, "display using an existing upload only, never transmit")
	f.Uint32Var(&flagForceID, "force-id", 0, "use this exact image ID instead of assigning one")
	f.StringVar(&flagIDSpace, "id-space", "", "ID feature-space: 8bit|24bit|8bit+4th|24bit+4th")
	f.StringVar(&flagIDSubspace, "id-subspace", "", "ID subspace bit pattern, e.g. 0110")
	f.StringVarP(&flagUploadMethod, "upload-method", "m", "", "auto|file|stream")
	f.StringVarP(&flagOutDisplay, "out-display", "o", "", "where to write the placeholder display stream (- for stdout)")
	f.StringVarP(&flagOutCommand, "out-command", "O", "", "where to write the APC transmit/put stream (- for stdout)")
	f.StringVar(&flagUseLineFeeds, "use-line-feeds", "", "auto|true|false: separate placeholder rows with newlines")
	f.BoolVarP(&flagAll, "all", "a", false, "apply to every known ID instead of one image path")
	f.StringVar(&flagOlder, "older", "", "restrict to records older than this duration")
	f.StringVar(&flagNewer, "newer", "", "restrict to records newer than this duration")
	f.IntVar(&flagLast, "last", 0, "restrict to the N most recently touched records")
	f.IntVar(&flagExceptLast, "except-last", 0, "exclude the N most recently touched records")
	f.StringVar(&flagPrint, "print", "", "print FORMAT instead of the normal output for the affected image(s)")

	root.AddCommand(
		newUploadCmd(),
		newGetIDCmd(),
		newPlaceholderCmd(),
		newListCmd(),
		newForgetCmd(),
		newDirtyCmd(),
		newReuploadCmd(),
		newFixCmd(),
		newCleanupCmd(),
		newDumpConfigCmd(),
		newStatusCmd(),
	)
	return root
}

// Execute runs the CLI and terminates the process with the matching
// exit code: 0 success, 1 a recognized operational failure, 2 a usage
// error. cobra's own usage/error printing is silenced above so every
// path through here controls both the message and the code.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if isUsageError(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func isUsageError(err error) bool {
	_, ok := err.(*usageError)
	return ok
}

// usageError marks a cobra.Command RunE failure as exit-code-2 material
// (bad flags/args), distinct from exit-code-1 operational failures.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// buildConfig loads configuration (file + env), then layers CLI-flag
// overrides through pkg/config.WithOverrides' dotted-key contract.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := map[string]string{}
	flags := cmd.Flags()
	setIfChanged := func(name, key string, value string) {
		if flags.Changed(name) {
			overrides[key] = value
		}
	}
	cols, rows, err := dimensionFlags()
	if err != nil {
		return nil, newUsageError("%v", err)
	}
	setIfChanged("cols", "display.cols", fmt.Sprint(cols))
	setIfChanged("rows", "display.rows", fmt.Sprint(rows))
	setIfChanged("scale", "display.scale", fmt.Sprint(flagScale))
	setIfChanged("max-cols", "display.max_cols", fmt.Sprint(flagMaxCols))
	setIfChanged("max-rows", "display.max_rows", fmt.Sprint(flagMaxRows))
	setIfChanged("force-upload", "upload.force_upload", fmt.Sprint(flagForceUpload))
	setIfChanged("no-upload", "upload.no_upload", fmt.Sprint(flagNoUpload))
	setIfChanged("id-space", "id.id_space", flagIDSpace)
	setIfChanged("id-subspace", "id.id_subspace", flagIDSubspace)
	setIfChanged("upload-method", "upload.upload_method", flagUploadMethod)
	setIfChanged("out-display", "display.out_display", flagOutDisplay)
	setIfChanged("out-command", "display.out_command", flagOutCommand)
	setIfChanged("use-line-feeds", "display.use_line_feeds", flagUseLineFeeds)

	cfg, err = cfg.WithOverrides(overrides)
	if err != nil {
		return nil, newUsageError("%v", err)
	}
	return cfg, nil
}

// dimensionFlags evaluates --cols/--rows, which may be plain numbers or
// formulas over the terminal's cell grid (cx = columns, cy = rows), e.g.
// --cols 'min(cx, 80)' or --rows 'cy/2'.
func dimensionFlags() (cols, rows int, err error) {
	size := terminal.GetSize()
	vars := func(name string) (float64, bool) {
		switch name {
		case "cx":
			return float64(size.Cols), true
		case "cy":
			return float64(size.Rows), true
		}
		return 0, false
	}
	eval := func(expr string) (int, error) {
		if expr == "" {
			return 0, nil
		}
		v, err := formula.Evaluate(expr, vars)
		if err != nil {
			return 0, err
		}
		if v < 0 {
			v = 0
		}
		return int(v), nil
	}
	if cols, err = eval(flagCols); err != nil {
		return 0, 0, err
	}
	if rows, err = eval(flagRows); err != nil {
		return 0, 0, err
	}
	return cols, rows, nil
}

func logger() *slog.Logger { return slog.Default() }
