// Package flags holds the command-line flags shared by the featgen commands.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/syssam/featgen/common"
	"github.com/syssam/featgen/httpserver"
	"github.com/syssam/featgen/instance"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
		Output:  cCtx.App.ErrWriter,
	})
	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// GeneratorOptions turns the generator flags into instance options.
func GeneratorOptions(cCtx *cli.Context, logger *slog.Logger) []instance.Option {
	return []instance.Option{
		instance.WithLogger(logger),
		instance.WithMaxInstances(cCtx.Int(MaxInstancesFlag.Name)),
		instance.WithMaxRedundant(cCtx.Int(MaxRedundantFlag.Name)),
	}
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ModelsFlag = &cli.StringFlag{
	Name:    "models",
	Aliases: []string{"m"},
	Value:   "models",
	Usage:   "directory of model files, with questionnaires under questions/",
	EnvVars: []string{"FEATGEN_MODELS"},
}

var TaskFlag = &cli.StringFlag{
	Name:     "task",
	Aliases:  []string{"t"},
	Required: true,
	Usage:    "top-level task feature to generate instances of, e.g. c0_PasswordBasedEncryption",
}

var SaveFlag = &cli.BoolFlag{
	Name:  "save",
	Value: false,
	Usage: "store the generated instances as a run (requires --db-source)",
}

var DBDriverFlag = &cli.StringFlag{
	Name:    "db-driver",
	Value:   "sqlite",
	Usage:   "run storage driver: sqlite, postgres or mysql",
	EnvVars: []string{"FEATGEN_DB_DRIVER"},
}

var DBSourceFlag = &cli.StringFlag{
	Name:    "db-source",
	Value:   "",
	Usage:   "run storage data source name; empty disables storage",
	EnvVars: []string{"FEATGEN_DB_SOURCE"},
}

var MaxInstancesFlag = &cli.IntFlag{
	Name:  "max-instances",
	Value: instance.DefaultMaxInstances,
	Usage: "stop the basic flow after this many distinct instances",
}

var MaxRedundantFlag = &cli.IntFlag{
	Name:  "max-redundant",
	Value: instance.DefaultMaxRedundant,
	Usage: "stop the basic flow after this many consecutive duplicate solutions",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var StorageFlags = []cli.Flag{
	DBDriverFlag,
	DBSourceFlag,
}

var GeneratorFlags = []cli.Flag{
	ModelsFlag,
	TaskFlag,
	MaxInstancesFlag,
	MaxRedundantFlag,
	SaveFlag,
}
