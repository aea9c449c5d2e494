package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/jengzang/machine-efficiency-go/internal/app"
	"github.com/jengzang/machine-efficiency-go/internal/config"
	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// env opens configuration, logging and the run registry on first use so
// help and flags work without them.
type env struct {
	configPath string

	lg  *logger.Logger
	app *app.App
}

func (e *env) open() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, err
	}
	lg, err := logger.New(logger.Config{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, lg.Logger)
	if err != nil {
		lg.Close()
		return nil, err
	}

	e.lg, e.app = lg, a
	return a, nil
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
	}
	if e.lg != nil {
		e.lg.Close()
	}
}

func envOf(args []interface{}) *env {
	for _, a := range args {
		if e, ok := a.(*env); ok {
			return e
		}
	}
	return &env{}
}

// stageCommand runs one or more pipeline stages as a recorded run.
type stageCommand struct {
	name     string
	synopsis string
	kind     string
	stages   []string

	raw       string
	processed string
	modelDir  string
	isolated  bool
	fromRun   string
}

var _ subcommands.Command = &stageCommand{}

func (c *stageCommand) Name() string     { return c.name }
func (c *stageCommand) Synopsis() string { return c.synopsis }

func (c *stageCommand) Usage() string {
	if c.promoteOnly() {
		return fmt.Sprintf("%s [-run id] [-processed dir] [-models dir]\n\t%s.\n", c.name, c.synopsis)
	}
	return fmt.Sprintf("%s [-raw file] [-processed dir] [-models dir] [-isolated]\n\t%s.\n", c.name, c.synopsis)
}

func (c *stageCommand) promoteOnly() bool {
	return len(c.stages) == 1 && c.stages[0] == pipeline.StagePromote
}

func (c *stageCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.raw, "raw", "", "raw CSV file (default paths.raw_data)")
	f.StringVar(&c.processed, "processed", "", "processed artifact directory (default paths.processed_dir)")
	f.StringVar(&c.modelDir, "models", "", "model artifact directory (default paths.model_dir)")
	if c.promoteOnly() {
		f.StringVar(&c.fromRun, "run", "", "run whose artifacts to serve (default: newest completed run that trained into -models)")
		return
	}
	f.BoolVar(&c.isolated, "isolated", false, "write artifacts under a fresh runs/<id> directory")
}

func (c *stageCommand) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", f.Args())
		return subcommands.ExitUsageError
	}

	a, err := envOf(args).open()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	rc, err := c.runContext(a)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := a.Runner.Run(ctx, c.kind, c.stages, rc, "cli"); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed [%s]: %s\n", c.name, apperr.KindOf(err), apperr.Message(err))
		return subcommands.ExitFailure
	}

	printResult(os.Stdout, rc)
	return subcommands.ExitSuccess
}

func (c *stageCommand) runContext(a *app.App) (*pipeline.RunContext, error) {
	paths := a.Config.Paths

	var rc *pipeline.RunContext
	if c.isolated {
		rc = a.Chains.NewRunContext()
	} else {
		rc = &pipeline.RunContext{
			RawData:      paths.RawData,
			ProcessedDir: paths.ProcessedDir,
			ModelDir:     paths.ModelDir,
			PointerPath:  paths.Current(),
		}
	}

	if c.raw != "" {
		rc.RawData = c.raw
	}
	if c.processed != "" {
		rc.ProcessedDir = c.processed
	}
	if c.modelDir != "" {
		rc.ModelDir = c.modelDir
	}

	if !c.promoteOnly() {
		return rc, nil
	}
	src, err := a.TrainedRun(c.fromRun, rc.ModelDir)
	if err != nil {
		if c.fromRun != "" {
			return nil, err
		}
		a.Log.Warn("promoting artifacts with no recorded training run", "model_dir", rc.ModelDir, "error", err)
		return rc, nil
	}
	rc.SourceRunID = src.ID
	if c.fromRun != "" {
		if c.processed == "" {
			rc.ProcessedDir = src.ProcessedDir
		}
		if c.modelDir == "" {
			rc.ModelDir = src.ModelDir
		}
	}
	return rc, nil
}

func printResult(w io.Writer, rc *pipeline.RunContext) {
	fmt.Fprintf(w, "run %s completed\n", rc.RunID)

	if s := rc.Split; s != nil {
		fmt.Fprintf(w, "split: %d train rows, %d test rows -> %s\n", len(s.YTrain), len(s.YTest), s.Dir)
	}

	if ev := rc.Evaluation; ev != nil {
		fmt.Fprintf(w, "accuracy %.4f  weighted f1 %.4f  log loss %.4f  iterations %d  converged %t\n",
			ev.Accuracy, ev.WeightedF1, ev.LogLoss, ev.Iterations, ev.Converged)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "class\tprecision\trecall\tf1\tsupport\t")
		for i, m := range ev.PerClass {
			name := fmt.Sprint(i)
			if i < len(ev.Classes) {
				name = ev.Classes[i]
			}
			fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%d\t\n", name, m.Precision, m.Recall, m.F1, m.Support)
		}
		tw.Flush()
	}

	if p := rc.Pointer; p != nil {
		fmt.Fprintf(w, "promoted run %s at %s\n", p.RunID, p.PromotedAt.Format("2006-01-02 15:04:05"))
	}
}

// runsCommand lists recorded runs as JSON.
type runsCommand struct {
	kind   string
	status string
	limit  int
}

var _ subcommands.Command = &runsCommand{}

func (*runsCommand) Name() string     { return "runs" }
func (*runsCommand) Synopsis() string { return "list recorded runs" }
func (*runsCommand) Usage() string {
	return "runs [-kind k] [-status s] [-limit n]\n\tList recorded runs, newest first.\n"
}

func (c *runsCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "filter by kind: prepare, train, promote, chain")
	f.StringVar(&c.status, "status", "", "filter by status: pending, running, completed, failed")
	f.IntVar(&c.limit, "limit", 20, "maximum number of runs")
}

func (c *runsCommand) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := envOf(args).open()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	runs, err := a.Runs.List(c.kind, c.status, c.limit, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
