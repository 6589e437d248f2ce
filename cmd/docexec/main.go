// Command docexec executes GraphQL documents against a schema whose fields
// are resolved by gRPC services or by a JSON fixture.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	config "github.com/hanpama/docexec/internal/config"
	executor "github.com/hanpama/docexec/internal/executor"
	"github.com/hanpama/docexec/internal/grpcrt"
	"github.com/hanpama/docexec/internal/grpctp"
	logging "github.com/hanpama/docexec/internal/logging"
	maprt "github.com/hanpama/docexec/internal/maprt"
	schema "github.com/hanpama/docexec/internal/schema"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every command shares once flags and config are resolved.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	var configFile string

	root := &cobra.Command{
		Use:          "docexec",
		Short:        "Execute GraphQL documents against gRPC resolver services",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(a.v, configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log, err = logging.New(cfg.Log.Level, cfg.Log.Format)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	pf.String("schema", "", "GraphQL SDL file; separate several with commas")
	pf.String("log-level", "info", "log level")
	pf.String("log-format", "json", "log format: json or console")
	bindKey(pf, "schema", "schema.path")
	bindKey(pf, "log-level", "log.level")
	bindKey(pf, "log-format", "log.format")

	root.AddCommand(
		newServeCmd(a),
		newExecCmd(a),
		newCheckCmd(a),
		newSchemaCmd(a),
		newResolverCmd(a),
	)
	return root
}

const configKeyAnnotation = "docexec_config_key"

// bindKey marks flag name as the command-line source of a config key.
func bindKey(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// bindFlags binds the marked flags of the running command. Commands share
// config keys, so binding happens per invocation rather than at definition.
func (a *app) bindFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 && err == nil {
			err = a.v.BindPFlag(keys[0], f)
		}
	})
	return err
}

func (a *app) loadSchema() (*schema.Schema, error) {
	if a.cfg.Schema.Path == "" {
		return nil, errors.New("schema path is required (--schema or schema.path)")
	}
	paths := strings.Split(a.cfg.Schema.Path, ",")
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}
	sch, err := schema.LoadSDLFiles(paths...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return sch, nil
}

// runtime builds the field resolution runtime from the config: gRPC services
// when backend endpoints are set, otherwise the fixture (possibly none). It
// returns the root value and a function releasing the runtime's resources.
func (a *app) runtime(sch *schema.Schema) (executor.Runtime, any, func(), error) {
	if a.cfg.UsesBackend() {
		endpoints, err := grpctp.ParseEndpoints(a.cfg.Backend.Endpoints)
		if err != nil {
			return nil, nil, nil, err
		}
		routes := make(map[string]string, len(a.cfg.Backend.Services))
		for _, e := range a.cfg.Backend.Services {
			typ, svc, _ := strings.Cut(e, "=")
			routes[strings.TrimSpace(typ)] = strings.TrimSpace(svc)
		}
		tp := grpctp.New(
			grpctp.WithProvider(grpctp.NewStaticEndpoints(endpoints)),
			grpctp.WithMaxConnsPerEndpoint(a.cfg.Backend.MaxConnsPerEndpoint),
			grpctp.WithRPCTimeout(a.cfg.Backend.RPCTimeout),
		)
		a.log.Info("resolving fields over gRPC", zap.Strings("endpoints", a.cfg.Backend.Endpoints))
		release := func() {
			if err := tp.Close(); err != nil {
				a.log.Warn("close transport", zap.Error(err))
			}
		}
		return grpcrt.NewRuntime(sch, tp, grpcrt.WithServices(routes)), nil, release, nil
	}

	var root any
	if a.cfg.Fixture.Path != "" {
		fixture, err := maprt.LoadFixture(a.cfg.Fixture.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		root = fixture
		a.log.Info("resolving fields from fixture", zap.String("path", a.cfg.Fixture.Path))
	}
	return maprt.New(sch), root, func() {}, nil
}

func (a *app) executorOptions() []executor.Option {
	return []executor.Option{
		executor.WithTimeout(a.cfg.Execution.Timeout),
		executor.WithMaxConcurrency(a.cfg.Execution.MaxConcurrency),
		executor.WithMaxDepth(a.cfg.Execution.MaxDepth),
		executor.WithLogger(a.log),
	}
}
