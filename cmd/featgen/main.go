package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/syssam/featgen"
	"github.com/syssam/featgen/catalog"
	"github.com/syssam/featgen/cmd/flags"
	"github.com/syssam/featgen/common"
	"github.com/syssam/featgen/compiler/gen"
	"github.com/syssam/featgen/httpserver"
	"github.com/syssam/featgen/instance"
	"github.com/syssam/featgen/question"
	"github.com/syssam/featgen/storage"
)

var answerFlag = &cli.StringSliceFlag{
	Name:    "answer",
	Aliases: []string{"a"},
	Usage:   "answer a question as id=value; unanswered questions take their default",
}

var propertiesFlag = &cli.StringFlag{
	Name:     "properties",
	Aliases:  []string{"p"},
	Required: true,
	Usage:    "YAML or JSON file of property constraints",
}

var outFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "out",
		Usage: "directory to write the instances to as Go code; empty prints them",
	},
	&cli.StringFlag{
		Name:  "package",
		Value: "configs",
		Usage: "package name of the generated Go code",
	},
	&cli.StringFlag{
		Name:  "header",
		Usage: "comment placed at the top of every generated file",
	},
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "featgen",
		Usage:   "Generate valid configurations of feature models",
		Version: common.Version,
		Flags:   flags.LogFlags,
		Commands: []*cli.Command{
			{
				Name:   "tasks",
				Usage:  "List the tasks of the model directory",
				Flags:  []cli.Flag{flags.ModelsFlag},
				Action: runTasks,
			},
			{
				Name:   "questions",
				Usage:  "Print the questionnaire of a task",
				Flags:  []cli.Flag{flags.ModelsFlag, flags.TaskFlag},
				Action: runQuestions,
			},
			{
				Name:   "generate",
				Usage:  "Generate instances from questionnaire answers",
				Flags:  concat(flags.GeneratorFlags, flags.StorageFlags, outFlags, []cli.Flag{answerFlag}),
				Action: runGenerate,
			},
			{
				Name:   "advanced",
				Usage:  "Generate instances from property constraints",
				Flags:  concat(flags.GeneratorFlags, flags.StorageFlags, outFlags, []cli.Flag{propertiesFlag}),
				Action: runAdvanced,
			},
			{
				Name:  "serve",
				Usage: "Serve the generation API",
				Flags: concat([]cli.Flag{
					flags.ModelsFlag,
					flags.ListenAddrFlag,
					flags.PprofFlag,
					flags.DrainSecondsFlag,
					flags.MaxInstancesFlag,
					flags.MaxRedundantFlag,
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "reload the catalog when model files change",
					},
					&cli.Int64Flag{
						Name:  "cache-bytes",
						Value: 64 << 20,
						Usage: "size of the response cache; 0 disables it",
					},
				}, flags.StorageFlags),
				Action: runServe,
			},
			{
				Name:  "runs",
				Usage: "Inspect stored runs",
				Flags: flags.StorageFlags,
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List runs, newest first",
						Flags: []cli.Flag{&cli.StringFlag{
							Name:  "task",
							Usage: "only list runs of this task",
						}},
						Action: runRunsList,
					},
					{
						Name:      "show",
						Usage:     "Print the instances of a run",
						ArgsUsage: "<run-id>",
						Action:    runRunsShow,
					},
					{
						Name:      "delete",
						Usage:     "Delete a run",
						ArgsUsage: "<run-id>",
						Action:    runRunsDelete,
					},
				},
			},
		},
	}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func loadEntry(cCtx *cli.Context) (*catalog.Entry, error) {
	c, err := catalog.LoadDir(cCtx.Context, cCtx.String(flags.ModelsFlag.Name))
	if err != nil {
		return nil, err
	}
	task := cCtx.String(flags.TaskFlag.Name)
	e, ok := c.Get(task)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", task)
	}
	return e, nil
}

// openStore opens the run store named by the storage flags, or returns nil
// when no data source is configured.
func openStore(cCtx *cli.Context, logger *slog.Logger) (*storage.Store, error) {
	source := cCtx.String(flags.DBSourceFlag.Name)
	if source == "" {
		return nil, nil
	}
	return storage.Open(cCtx.Context, cCtx.String(flags.DBDriverFlag.Name), source, storage.WithLogger(logger))
}

func requireStore(cCtx *cli.Context, logger *slog.Logger) (*storage.Store, error) {
	store, err := openStore(cCtx, logger)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("--db-source is required")
	}
	return store, nil
}

func parseAnswers(values []string) (map[int]string, error) {
	answers := make(map[int]string, len(values))
	for _, v := range values {
		id, value, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("answer %q: expected id=value", v)
		}
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("answer %q: invalid question id: %w", v, err)
		}
		answers[n] = value
	}
	return answers, nil
}

func runTasks(cCtx *cli.Context) error {
	c, err := catalog.LoadDir(cCtx.Context, cCtx.String(flags.ModelsFlag.Name))
	if err != nil {
		return err
	}
	w := cCtx.App.Writer
	for _, e := range c.Entries() {
		questions := 0
		if e.Questions != nil {
			questions = len(e.Questions.Questions)
		}
		fmt.Fprintf(w, "%s\t%d questions\t%s\n", e.Task, questions, e.Description)
	}
	return nil
}

func runQuestions(cCtx *cli.Context) error {
	e, err := loadEntry(cCtx)
	if err != nil {
		return err
	}
	if e.Questions == nil {
		return fmt.Errorf("task %q has no questionnaire", e.Task)
	}
	w := cCtx.App.Writer
	for _, q := range e.Questions.Questions {
		fmt.Fprintf(w, "%d: %s\n", q.ID, q.Text)
		for _, a := range q.Answers {
			mark := " "
			if a.Default {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, a.Value)
		}
	}
	return nil
}

func runGenerate(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	e, err := loadEntry(cCtx)
	if err != nil {
		return err
	}
	choices, err := parseAnswers(cCtx.StringSlice(answerFlag.Name))
	if err != nil {
		return err
	}
	answers := map[*question.Question]*question.Answer{}
	switch {
	case e.Questions != nil:
		if answers, err = e.Questions.Select(choices); err != nil {
			return err
		}
	case len(choices) > 0:
		return fmt.Errorf("task %q has no questionnaire", e.Task)
	}
	g, err := e.Generator(flags.GeneratorOptions(cCtx, logger)...)
	if err != nil {
		return err
	}
	return emit(cCtx, logger, g, storage.ModeBasic, g.Generate(cCtx.Context, answers))
}

func runAdvanced(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	e, err := loadEntry(cCtx)
	if err != nil {
		return err
	}
	props, err := question.LoadProperties(cCtx.String(propertiesFlag.Name))
	if err != nil {
		return err
	}
	if props.Task != "" && props.Task != e.Task {
		return fmt.Errorf("properties are for task %q, not %q", props.Task, e.Task)
	}
	g, err := e.Generator(flags.GeneratorOptions(cCtx, logger)...)
	if err != nil {
		return err
	}
	return emit(cCtx, logger, g, storage.ModeAdvanced, g.GenerateAdvanced(cCtx.Context, props.Constraints))
}

// emit prints or writes the result and stores it when asked to. A partial
// result is still emitted before its error is returned.
func emit(cCtx *cli.Context, logger *slog.Logger, g *instance.Generator, mode string, res *instance.Result) error {
	if out := cCtx.String("out"); out != "" {
		cg, err := gen.New(
			gen.WithPackage(cCtx.String("package")),
			gen.WithTarget(out),
			gen.WithHeader(cCtx.String("header")),
		)
		if err != nil {
			return err
		}
		file, err := cg.Task(g.Model().Top(g.TaskName()), res)
		if err != nil {
			return err
		}
		if err := cg.WriteAll(cCtx.Context, file); err != nil {
			return err
		}
		logger.Info("instances written", "dir", out, "file", file.Name, "instances", res.Len())
	} else {
		w := cCtx.App.Writer
		for _, name := range res.Ranked() {
			inst, _ := res.Get(name)
			fmt.Fprintf(w, "%s\n%s\n", name, inst)
		}
	}
	if cCtx.Bool(flags.SaveFlag.Name) {
		store, err := requireStore(cCtx, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		run, err := store.SaveRun(cCtx.Context, g.TaskName(), mode, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cCtx.App.Writer, "run %s\n", run.ID)
	}
	return res.Err()
}

func runServe(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	dir := cCtx.String(flags.ModelsFlag.Name)

	logger.Info("Loading catalog", "dir", dir)
	c, err := catalog.LoadDir(cCtx.Context, dir)
	if err != nil {
		logger.Error("Failed to load catalog", "err", err)
		return err
	}
	store, err := openStore(cCtx, logger)
	if err != nil {
		logger.Error("Failed to open run storage", "err", err)
		return err
	}
	if store != nil {
		defer store.Close()
	}

	handler := httpserver.NewHandler(c, store, logger, flags.GeneratorOptions(cCtx, logger)...)
	if size := cCtx.Int64("cache-bytes"); size > 0 {
		mc, err := featgen.NewMemoryCache(size)
		if err != nil {
			return err
		}
		defer mc.Close()
		handler.SetCache(mc)
	}
	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cCtx.Bool("watch") {
		go func() {
			if err := catalog.Watch(ctx, dir, catalog.DefaultDebounce, logger, handler.SetCatalog); err != nil {
				logger.Error("Catalog watch stopped", "err", err)
			}
		}()
	}

	server.RunInBackground()
	logger.Info("Server is running, press Ctrl+C to stop", "tasks", c.Len())
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func runRunsList(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	store, err := requireStore(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.Runs(cCtx.Context, cCtx.String("task"))
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintf(cCtx.App.Writer, "%s\t%s\t%s\t%s\n", run.ID, run.Created.Format("2006-01-02 15:04:05"), run.Mode, run.Task)
	}
	return nil
}

func runRunsShow(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	id := cCtx.Args().First()
	if id == "" {
		return errors.New("run id is required")
	}
	store, err := requireStore(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	run, err := store.Run(cCtx.Context, id)
	if err != nil {
		return err
	}
	w := cCtx.App.Writer
	fmt.Fprintf(w, "run %s: %s (%s)\n", run.ID, run.Task, run.Mode)
	for _, n := range run.Instances {
		fmt.Fprintf(w, "%s\n%s\n", n.Name, n.Snapshot)
	}
	return nil
}

func runRunsDelete(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	id := cCtx.Args().First()
	if id == "" {
		return errors.New("run id is required")
	}
	store, err := requireStore(cCtx, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.DeleteRun(cCtx.Context, id)
}
