package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/litmuschaos/chaos-advisor/pkg/clients"
	"github.com/litmuschaos/chaos-advisor/pkg/environment"
	"github.com/litmuschaos/chaos-advisor/pkg/executor"
	"github.com/litmuschaos/chaos-advisor/pkg/llm"
	"github.com/litmuschaos/chaos-advisor/pkg/log"
	"github.com/litmuschaos/chaos-advisor/pkg/metrics"
	"github.com/litmuschaos/chaos-advisor/pkg/monitor"
	"github.com/litmuschaos/chaos-advisor/pkg/notify"
	"github.com/litmuschaos/chaos-advisor/pkg/probe"
	"github.com/litmuschaos/chaos-advisor/pkg/report"
	"github.com/litmuschaos/chaos-advisor/pkg/telemetry"
	"github.com/litmuschaos/chaos-advisor/pkg/translator"
	"github.com/litmuschaos/chaos-advisor/pkg/types"
	"github.com/litmuschaos/chaos-advisor/pkg/utils/stringutils"
)

// newRootCommand builds the advisor command tree, flags override the environment
func newRootCommand() *cobra.Command {
	details := &types.AdvisorDetails{}
	environment.GetENV(details)

	root := &cobra.Command{
		Use:           "advisor",
		Short:         "Translate, run and analyze chaos experiments against a Kubernetes cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Init(details.LogLevel, nil)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&details.KubeConfig, "kubeconfig", details.KubeConfig, "path to the kubeconfig, in-cluster config when empty")
	flags.StringVar(&details.LogLevel, "log-level", details.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&details.ChaosSvcAccount, "service-account", details.ChaosSvcAccount, "service account of the litmus chaos runner")

	root.AddCommand(newValidateCommand(details), newRenderCommand(details), newRunCommand(details))
	return root
}

func newValidateCommand(details *types.AdvisorDetails) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <intent-file>",
		Short: "Validate an experiment intent and check that it translates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := types.LoadIntent(args[0])
			if err != nil {
				return err
			}
			manifest, err := translator.New(details.ChaosSvcAccount).Translate(intent, stringutils.GetRunID())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "intent '%s' is valid, it translates to a %s\n", intent.Title, manifest.Object.GetKind())
			return nil
		},
	}
}

func newRenderCommand(details *types.AdvisorDetails) *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "render <intent-file>",
		Short: "Render the chaos manifest of an experiment intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := types.LoadIntent(args[0])
			if err != nil {
				return err
			}
			manifest, err := translator.New(details.ChaosSvcAccount).Translate(intent, stringutils.GetRunID())
			if err != nil {
				return err
			}
			if output != "" {
				if err := manifest.SaveManifest(output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "manifest written to %s\n", output)
				return nil
			}

			var content []byte
			switch format {
			case "json":
				content, err = manifest.JSON()
			case "yaml":
				content, err = manifest.YAML()
			default:
				return fmt.Errorf("output format '%s' is not supported, use yaml or json", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the manifest as yaml to this file")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format, yaml or json")
	return cmd
}

func newRunCommand(details *types.AdvisorDetails) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run <intent-file>",
		Short: "Apply an experiment, monitor it and write the RCA report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := types.LoadIntent(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runExperiment(ctx, cmd, details, intent, dryRun)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "only translate the intent, nothing is applied")
	flags.StringVar(&details.PrometheusURL, "prometheus-url", details.PrometheusURL, "address of the prometheus server")
	flags.StringVar(&details.SlackWebhookURL, "slack-webhook", details.SlackWebhookURL, "slack incoming webhook for notifications")
	flags.DurationVar(&details.MonitorInterval, "interval", details.MonitorInterval, "time between two monitoring ticks")
	flags.DurationVar(&details.QueryTimeout, "query-timeout", details.QueryTimeout, "timeout of a single status or metrics query")
	flags.StringVar(&details.ReportsDir, "reports-dir", details.ReportsDir, "directory the RCA reports are written to")
	flags.StringVar(&details.LLMProvider, "llm-provider", details.LLMProvider, "llm provider for report insights, openai or mock")
	return cmd
}

func runExperiment(ctx context.Context, cmd *cobra.Command, details *types.AdvisorDetails, intent types.ExperimentIntent, dryRun bool) error {
	if dryRun {
		return dryRunExperiment(ctx, cmd, details, intent)
	}

	registry := prometheus.NewRegistry()
	shutdown, err := telemetry.InitOTelSDK(ctx, telemetry.AdvisorServiceName, details.OTelEndpoint, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warnf("[Advisor]: Unable to shut down telemetry, err: %v", err)
		}
	}()

	clientSets := &clients.ClientSets{
		Retry: clients.RetryPolicy{Attempts: uint(details.RetryCount), Delay: details.RetryDelay},
	}
	if err := clientSets.GenerateClientSetFromKubeConfig(details.KubeConfig); err != nil {
		return err
	}
	exec := executor.New(clientSets, executor.WithServiceAccount(details.ChaosSvcAccount))

	runID, err := exec.Apply(ctx, intent, false)
	if err != nil {
		return err
	}

	backend, err := probe.NewPrometheusBackend(details.PrometheusURL)
	if err != nil {
		return err
	}
	recorder, err := metrics.NewRecorder(registry, otel.Meter(telemetry.MeterName))
	if err != nil {
		return err
	}
	mon := monitor.New(exec, probe.New(backend, details.QueryTimeout),
		monitor.WithInterval(details.MonitorInterval),
		monitor.WithStatusTimeout(details.QueryTimeout),
		monitor.WithProgressEvery(details.ProgressEvery),
		monitor.WithNotifier(notify.NewSlackNotifier(details.SlackWebhookURL, details.QueryTimeout)),
		monitor.WithRecorder(recorder.WithPushgateway(details.PushgatewayURL)),
		monitor.WithAbortFunc(exec.Abort),
	)

	final, monitorErr := mon.Monitor(ctx, runID, intent)
	if ctx.Err() != nil {
		// interrupted, the chaos must not outlive the advisor
		if err := exec.Abort(context.WithoutCancel(ctx), runID); err != nil {
			log.Errorf("[Advisor]: Unable to abort run %v, err: %v", runID, err)
		}
	}
	if final == nil {
		return monitorErr
	}

	provider, err := llm.NewProvider(details)
	if err != nil {
		log.Warnf("[Advisor]: Report insights are disabled, err: %v", err)
	}
	path, err := report.NewMarkdownNarrator(details.ReportsDir, provider, nil).Narrate(context.WithoutCancel(ctx), *final)
	if err != nil {
		log.Errorf("[Advisor]: Unable to write the RCA report, err: %v", err)
	}

	exec.Cleanup()
	outcome := report.Assemble(*final)
	log.InfoWithValues("[Advisor]: The experiment has finished", logrus.Fields{
		"RunID":  runID,
		"Status": outcome.Status,
		"Report": path,
	})
	fmt.Fprintln(cmd.OutOrStdout(), outcome.Summary)
	return monitorErr
}

// dryRunExperiment translates the intent without a cluster connection or telemetry
func dryRunExperiment(ctx context.Context, cmd *cobra.Command, details *types.AdvisorDetails, intent types.ExperimentIntent) error {
	exec := executor.New(&clients.ClientSets{}, executor.WithServiceAccount(details.ChaosSvcAccount))
	runID, err := exec.Apply(ctx, intent, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dry run %s: the intent translates, nothing was applied\n", runID)
	return nil
}
