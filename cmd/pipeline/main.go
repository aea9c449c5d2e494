// Command pipeline runs the data-split, training and promotion stages from
// the command line and lists recorded runs.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/jengzang/machine-efficiency-go/internal/models"
	"github.com/jengzang/machine-efficiency-go/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $CONFIG_FILE)")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&stageCommand{
		name:     "prepare",
		synopsis: "split the raw CSV into scaled train/test artifacts",
		kind:     models.RunKindPrepare,
		stages:   []string{pipeline.StagePrepare},
	}, "stages")
	subcommands.Register(&stageCommand{
		name:     "train",
		synopsis: "fit the classifier on prepared artifacts and evaluate it",
		kind:     models.RunKindTrain,
		stages:   []string{pipeline.StageTrain},
	}, "stages")
	subcommands.Register(&stageCommand{
		name:     "promote",
		synopsis: "point the serving model at prepared and trained artifacts",
		kind:     models.RunKindPromote,
		stages:   []string{pipeline.StagePromote},
	}, "stages")
	subcommands.Register(&stageCommand{
		name:     "run",
		synopsis: "prepare, train and promote in one run",
		kind:     models.RunKindChain,
		stages:   pipeline.ChainStages,
	}, "stages")
	subcommands.Register(&runsCommand{}, "runs")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	e := &env{configPath: *configPath}
	status := subcommands.Execute(ctx, e)

	e.close()
	stop()
	os.Exit(int(status))
}
