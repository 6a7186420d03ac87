package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/executor"
	"github.com/artpar/agentkit/internal/shell/invoke"
	"github.com/artpar/agentkit/internal/shell/runner"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// errFailed marks an operation that ran and returned a failed result. The
// failure has already been reported.
var errFailed = errors.New("operation failed")

// usageError is a problem with flags, arguments or settings.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errFailed):
		return ExitFailure
	default:
		return ExitUsage
	}
}

// failed reports a failed result and returns errFailed.
func (a *app) failed(code domain.ErrorCode, msg string) error {
	a.rep.Error(fmt.Sprintf("%s [%s]", msg, code))
	return errFailed
}

// =============================================================================
// Root
// =============================================================================

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "agentkit",
		Short:         "Build, deploy and invoke agent services",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", a.configPath, "project configuration file")
	flags.StringVar(&a.settingsPath, "settings", "", "tool settings file (default "+DefaultSettingsPath+")")
	flags.StringVar(&a.preflight, "preflight", "", "service check policy: prompt, fail, warn or skip")

	root.AddCommand(
		newBuildCmd(a),
		newDeployCmd(a),
		newLaunchCmd(a),
		newInvokeCmd(a),
		newStatusCmd(a),
		newLifecycleCmd(a, executor.OpStop, "Stop the running agent"),
		newLifecycleCmd(a, executor.OpDestroy, "Remove the deployment and its local artifacts"),
		newVersionCmd(a),
	)
	return root
}

// =============================================================================
// Build, Deploy, Launch
// =============================================================================

func newBuildCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the agent image",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			res := executor.NewBuildExecutor(opts).Execute(cmd.Context(), strategy.BuildOptions{ForceRegenerate: force})
			if !res.Success {
				return a.failed(res.ErrorCode, res.Error)
			}
			if res.Image != nil {
				fmt.Fprintln(a.out, res.Image.FullName())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate the Dockerfile even when it is current or hand-written")
	return cmd
}

func newDeployCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the built image",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			res := executor.NewDeployExecutor(opts).Execute(cmd.Context())
			if !res.Success {
				return a.failed(res.ErrorCode, res.Error)
			}
			fmt.Fprintln(a.out, res.EndpointURL)
			return nil
		},
	}
}

func newLaunchCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Build and deploy",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			res := executor.NewLifecycleExecutor(opts).Launch(cmd.Context(), strategy.BuildOptions{ForceRegenerate: force})
			if !res.Success {
				return a.failed(res.ErrorCode, res.Error)
			}
			if res.Deploy != nil {
				fmt.Fprintln(a.out, res.Deploy.EndpointURL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate the Dockerfile even when it is current or hand-written")
	return cmd
}

// =============================================================================
// Invoke
// =============================================================================

func newInvokeCmd(a *app) *cobra.Command {
	var (
		stream    bool
		sessionID string
		userID    string
		headers   []string
	)
	cmd := &cobra.Command{
		Use:   "invoke <json|text>",
		Short: "Send a request to the deployed agent",
		Long: `Send a request to the deployed agent.

A JSON object argument is sent as the payload; any other text is sent as
{"prompt": "<text>"}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := runner.InvokeRequest{
				Payload:   parsePayload(args[0]),
				SessionID: sessionID,
				UserID:    userID,
			}
			h, err := parseHeaders(headers)
			if err != nil {
				return usageError{err}
			}
			req.Headers = h
			if cmd.Flags().Changed("stream") {
				req.Stream = invoke.StreamOff
				if stream {
					req.Stream = invoke.StreamOn
				}
			}

			opts, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			res := executor.NewInvokeExecutor(opts).Execute(cmd.Context(), req)
			if !res.Success {
				return a.failed(res.ErrorCode, res.Error)
			}
			return a.printResponse(res)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&stream, "stream", false, "read the response as an event stream (default: detect)")
	f.StringVar(&sessionID, "session-id", "", "conversation session id (default: new)")
	f.StringVar(&userID, "user-id", "", "user id sent with the request")
	f.StringArrayVar(&headers, "header", nil, "extra request header as key=value (repeatable)")
	return cmd
}

// parsePayload reads arg as a JSON object, falling back to a prompt.
func parsePayload(arg string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(arg), &payload); err == nil && payload != nil {
		return payload
	}
	return map[string]any{"prompt": arg}
}

func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func (a *app) printResponse(res domain.InvokeResult) error {
	if res.IsStreaming && res.Stream != nil {
		defer res.Stream.Close()
		enc := json.NewEncoder(a.out)
		for ev, err := range res.Stream.Events() {
			if err != nil {
				return a.failed(domain.ErrorCodeInvokeFailed, err.Error())
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}
	if s, ok := res.Response.(string); ok {
		fmt.Fprintln(a.out, s)
		return nil
	}
	body, err := json.MarshalIndent(res.Response, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(body))
	return nil
}

// =============================================================================
// Status, Stop, Destroy, Version
// =============================================================================

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the deployment status",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			res := executor.NewStatusExecutor(opts).Execute(cmd.Context())
			if !res.Success {
				return a.failed(res.ErrorCode, res.Error)
			}
			fmt.Fprintf(a.out, "status: %s\n", res.Status)
			if res.EndpointURL != "" {
				fmt.Fprintf(a.out, "endpoint: %s\n", res.EndpointURL)
			}
			for _, k := range slices.Sorted(maps.Keys(res.Details)) {
				fmt.Fprintf(a.out, "%s: %v\n", k, res.Details[k])
			}
			return nil
		},
	}
}

func newLifecycleCmd(a *app, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op,
		Short: short,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.options(cmd.Context())
			if err != nil {
				return err
			}
			e := executor.NewLifecycleExecutor(opts)
			var res domain.LifecycleResult
			if op == executor.OpStop {
				res = e.Stop(cmd.Context())
			} else {
				res = e.Destroy(cmd.Context())
			}
			if !res.Success {
				return a.failed(res.ErrorCode, res.Error)
			}
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  noArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.out, "agentkit %s (built %s)\n", Version, BuildTime)
		},
	}
}

// noArgs rejects positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}
