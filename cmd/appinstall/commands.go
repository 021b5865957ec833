package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petrijr/appinstall"
	"github.com/petrijr/appinstall/cmd/appinstall/ui"
	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
	"github.com/petrijr/appinstall/pkg/steps"
	"github.com/petrijr/appinstall/pkg/telemetry"
)

const (
	metricsNamespace = "appinstall"
	tracerName       = "github.com/petrijr/appinstall/cmd/appinstall"
)

func newPlanCmd(g *globals) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the steps an installation would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, closer, err := g.store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()

			inst := &appinstall.Installer{Store: store}
			plan, err := inst.Plan(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if g.json {
				return writeJSON(out, plan)
			}
			fmt.Fprint(out, ui.KeyValues("",
				ui.KV("Plan", plan.ID),
				ui.KV("App", cfg.Metadata.DisplayName+" "+ui.Muted(cfg.Metadata.Version)),
				ui.KV("Created", plan.CreatedAt.Format(time.RFC3339)),
			))
			fmt.Fprintln(out)
			fmt.Fprint(out, ui.StepTree(plan.Step))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the app config (YAML or JSON)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newRunCmd(g *globals) *cobra.Command {
	var (
		configPath string
		app        api.AppData
		params     map[string]string
		metrics    bool
		tracing    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and run an installation against dry-run clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, closer, err := g.store.open(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			tracer := otel.Tracer(tracerName)
			if tracing {
				tp, err := newStderrTracerProvider(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer func() { _ = tp.Shutdown(context.Background()) }()
				tracer = tp.Tracer(tracerName)
			}

			reg := prometheus.NewRegistry()
			metricsHooks, err := telemetry.NewMetricsHooks(reg, metricsNamespace)
			if err != nil {
				return err
			}

			inst := &appinstall.Installer{
				Store: store,
				Hooks: api.NewCompositeHooks(
					api.NewLoggingHooks(g.logger),
					metricsHooks,
					telemetry.NewTracingHooks(tracer),
				),
			}
			plan, err := inst.Plan(ctx, cfg)
			if err != nil {
				return err
			}

			actionParams := make(map[string]any, len(params))
			for k, v := range params {
				actionParams[k] = v
			}
			ec := api.NewExecutionContext(app, g.logger, actionParams).With(
				steps.ClientFactoryKey.Bind(steps.NewDryRunClientFactory(g.logger)),
				steps.ScriptRegistryKey.Bind(steps.NewScriptRegistry()),
			)

			state, err := inst.Run(ctx, ec, cfg, plan)
			if err != nil {
				return err
			}

			if err := printState(cmd.OutOrStdout(), g.json, state); err != nil {
				return err
			}
			if metrics {
				if err := writeMetrics(cmd.ErrOrStderr(), reg); err != nil {
					return err
				}
			}
			if state.Status == api.InstallationFailed {
				return errInstallationFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Path to the app config (YAML or JSON)")
	f.StringVar(&app.ConsumerOrgID, "org", "", "Consumer organization id")
	f.StringVar(&app.ProjectID, "project", "", "Project id")
	f.StringVar(&app.WorkspaceID, "workspace", "", "Workspace id")
	f.StringToStringVar(&params, "param", nil, "Action parameter as key=value (repeatable)")
	f.BoolVar(&metrics, "metrics", false, "Print the run's Prometheus metrics to stderr")
	f.BoolVar(&tracing, "trace", false, "Print the run's trace spans to stderr")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newStatusCmd(g *globals) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a stored installation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closer, err := g.store.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()

			state, err := store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if state == nil {
				return fmt.Errorf("installation %s not found", id)
			}
			return printState(cmd.OutOrStdout(), g.json, state)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Installation id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printState(out io.Writer, asJSON bool, state *api.InstallationState) error {
	if asJSON {
		return writeJSON(out, state)
	}

	pairs := []ui.Pair{
		ui.KV("Installation", state.ID),
		ui.KV("Status", ui.InstallationStatus(state.Status)),
	}
	if state.StartedAt != nil {
		pairs = append(pairs, ui.KV("Started", state.StartedAt.Format(time.RFC3339)))
	}
	if state.StartedAt != nil && state.CompletedAt != nil {
		pairs = append(pairs, ui.KV("Duration", state.CompletedAt.Sub(*state.StartedAt).String()))
	}
	fmt.Fprint(out, ui.KeyValues("", pairs...))
	fmt.Fprintln(out)
	fmt.Fprint(out, ui.StepTree(state.Step))

	if rows := resultRows(state); len(rows) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.Table([]string{"Step", "Result"}, rows))
	}

	if state.Error != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.ErrorMsg("%s: %s", state.Error.PathString(), state.Error.Message))
		fmt.Fprintln(out, "  "+ui.Muted(string(state.Error.Key)))
	} else if state.Status == api.InstallationSucceeded {
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.SuccessMsg("installation completed"))
	}
	return nil
}

const maxResultWidth = 60

// resultRows lists the stored result of every succeeded leaf.
func resultRows(state *api.InstallationState) [][]string {
	var rows [][]string
	state.Step.Walk(func(n *api.StepStatus) {
		if !n.IsLeaf || n.Status != api.StepSucceeded {
			return
		}
		v := api.GetAtPath(state.Data, n.Path)
		if v == nil {
			return
		}
		raw, err := json.Marshal(v)
		if err != nil {
			raw = []byte(fmt.Sprint(v))
		}
		summary := string(raw)
		if len(summary) > maxResultWidth {
			summary = summary[:maxResultWidth-3] + "..."
		}
		rows = append(rows, []string{n.PathString(), summary})
	})
	return rows
}

// newStderrTracerProvider exports spans synchronously so every span is
// written before the command returns.
func newStderrTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}

func writeMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
