package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/preflight"
	"github.com/artpar/agentkit/internal/shell/configfile"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/executor"
	"github.com/artpar/agentkit/internal/shell/invoke"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/storage"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// app carries what every command shares. Settings are loaded once, before
// the first command runs.
type app struct {
	out    io.Writer
	errOut io.Writer

	// Flags.
	configPath   string
	settingsPath string
	preflight    string

	settings *Settings
	logger   *slog.Logger
	rep      reporter.Reporter
	fs       afero.Fs

	dockerOnce sync.Once
	docker     *docker.DockerClient
	dockerErr  error
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, fs: afero.NewOsFs(), configPath: config.DefaultFileName}
}

// init loads settings and sets up logging and reporting.
func (a *app) init() error {
	s, err := LoadSettings(a.settingsPath)
	if err != nil {
		return usageError{err}
	}
	logger, err := SetupLogger(s.Log, a.errOut)
	if err != nil {
		return usageError{err}
	}
	a.settings = s
	a.logger = logger
	slog.SetDefault(logger)

	switch s.Output {
	case "log":
		a.rep = reporter.NewLogging(logger)
	case "interactive", "":
		a.rep = reporter.NewInteractive(a.out)
	default:
		return usageError{fmt.Errorf("unknown output: %s", s.Output)}
	}
	return nil
}

// Close releases the container engine connection.
func (a *app) Close() {
	if a.docker != nil {
		a.docker.Close()
	}
}

// connectDocker connects to the engine on first use.
func (a *app) connectDocker(ctx context.Context) (docker.Client, error) {
	a.dockerOnce.Do(func() {
		a.docker, a.dockerErr = docker.Connect(ctx, a.settings.Docker.Host)
	})
	if a.dockerErr != nil {
		return nil, a.dockerErr
	}
	return a.docker, nil
}

// options assembles executor options for the project file.
func (a *app) options(ctx context.Context) (executor.Options, error) {
	path, err := filepath.Abs(a.configPath)
	if err != nil {
		return executor.Options{}, usageError{err}
	}

	policyName := a.preflight
	if policyName == "" {
		policyName = a.settings.Preflight
	}
	policy, err := preflight.ParsePolicy(policyName)
	if err != nil {
		return executor.Options{}, usageError{err}
	}

	deps := strategy.Deps{
		Fs:           a.fs,
		WorkDir:      filepath.Dir(path),
		HTTP:         invoke.NewClient(a.settings.InvokeTimeout, a.logger),
		Reporter:     a.rep,
		Logger:       a.logger,
		PollInterval: a.settings.PollInterval,
	}

	var services platform.ServiceAPI
	if ps := a.settings.Platform; ps.HasCredentials() {
		client := platform.NewClient(platform.Config{
			Endpoint: ps.Endpoint,
			Region:   ps.Region,
			Timeout:  ps.Timeout,
			RetryMax: ps.RetryMax,
		}, a.logger, platform.HeaderEditor(ps.Headers))
		deps.Platform = client
		deps.Storage = storage.New(storage.Config{
			Endpoint:  a.settings.Storage.Endpoint,
			Region:    ps.Region,
			AccessKey: ps.AccessKey,
			SecretKey: ps.SecretKey,
			PathStyle: a.settings.Storage.PathStyle,
		}, a.logger)
		services = client
	}

	factory := func(lt config.LaunchType) (strategy.Strategy, error) {
		d := deps
		if lt == config.LaunchTypeLocal || lt == config.LaunchTypeHybrid {
			cli, err := a.connectDocker(ctx)
			if err != nil {
				d.DockerErr = err
			} else {
				d.Docker = cli
			}
		}
		return strategy.New(lt, d)
	}

	return executor.Options{
		Store:      configfile.NewStore(a.fs, path),
		Strategies: factory,
		Services:   services,
		Policy:     policy,
		Reporter:   a.rep,
		Logger:     a.logger,
	}, nil
}
