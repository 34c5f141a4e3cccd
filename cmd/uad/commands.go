package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/aggregator"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/config"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/costimpact"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/detector"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/directory"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/docsink"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/logging"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/notify"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/pipeline"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/rootcause"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/search"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/usage"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/version"
)

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "uad",
		Short: "Multi-account AWS usage anomaly detector",
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(newConfigureCmd(&debug))
	root.AddCommand(newTeardownCmd(&debug))
	root.AddCommand(newDashboardsCmd(&debug))
	root.AddCommand(newSyncCmd(&debug))
	root.AddCommand(newNotifyCmd(&debug))
	root.AddCommand(newAccountsCmd(&debug))
	root.AddCommand(newVersionCmd())
	return root
}

// runtime bundles the per-invocation dependencies every command starts from.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	session *awsx.Session
}

// newRuntime loads configuration, logging, and the AWS session. Every
// command goes through here so flag and environment handling stay uniform.
func newRuntime(ctx context.Context, debug bool) (*runtime, error) {
	cfg := config.FromEnv()

	log, err := logging.New(debug)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	session, err := awsx.NewLoader().Load(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("load AWS session: %w", err)
	}

	log.Debug("session ready",
		zap.String("account_id", session.AccountID),
		zap.String("region", session.Region))
	return &runtime{cfg: cfg, log: log, session: session}, nil
}

// searchClient builds the signed search-engine client from the runtime.
func (r *runtime) searchClient() (*search.Client, error) {
	if err := r.cfg.RequireOpenSearch(); err != nil {
		return nil, err
	}
	return search.NewClient(r.session.Config, r.cfg.OpenSearchHost, r.cfg.RequestTimeout, r.log)
}

// configurator builds the detector configurator over the search client.
func (r *runtime) configurator(interval, delay time.Duration) (*detector.Configurator, error) {
	client, err := r.searchClient()
	if err != nil {
		return nil, err
	}
	opts := detector.Options{
		DetectionInterval: interval,
		WindowDelay:       delay,
		EnableLambdaTrail: r.cfg.EnableLambdaTrail,
	}
	return detector.New(client, r.cfg.IndexPattern, opts, r.log), nil
}

func newConfigureCmd(debug *bool) *cobra.Command {
	var (
		interval       time.Duration
		delay          time.Duration
		withDashboards bool
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Create and start the anomaly detector set",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *debug)
			if err != nil {
				return err
			}
			cfg, err := rt.configurator(interval, delay)
			if err != nil {
				return err
			}

			results, err := cfg.Configure(cmd.Context(), detector.DefaultTemplates())
			printRegistrations(os.Stdout, results)
			if err != nil {
				return fmt.Errorf("configure detectors: %w", err)
			}

			if withDashboards {
				cfg.ProvisionDashboards(cmd.Context())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "detection-interval", 0, "Detector detection interval (default 10m)")
	cmd.Flags().DurationVar(&delay, "window-delay", 0, "Detector window delay (default 1m)")
	cmd.Flags().BoolVar(&withDashboards, "with-dashboards", false, "Also provision the index pattern and visualizations")
	return cmd
}

func newTeardownCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Stop and delete the anomaly detector set",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *debug)
			if err != nil {
				return err
			}
			cfg, err := rt.configurator(0, 0)
			if err != nil {
				return err
			}
			if err := cfg.Teardown(cmd.Context()); err != nil {
				return fmt.Errorf("teardown detectors: %w", err)
			}
			fmt.Println("Detector set removed.")
			return nil
		},
	}
}

func newDashboardsCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboards",
		Short: "Provision the index pattern and visualizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *debug)
			if err != nil {
				return err
			}
			cfg, err := rt.configurator(0, 0)
			if err != nil {
				return err
			}
			cfg.ProvisionDashboards(cmd.Context())
			fmt.Println("Dashboards provisioned (best effort; see logs for detail).")
			return nil
		},
	}
}

func newSyncCmd(debug *bool) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Aggregate recent anomalies and upsert them into the document sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *debug)
			if err != nil {
				return err
			}
			if err := rt.cfg.RequireDocumentSink(); err != nil {
				return err
			}
			client, err := rt.searchClient()
			if err != nil {
				return err
			}

			clients := rt.session.Clients
			source := aggregator.New(client, rt.cfg.IndexPattern, rt.log)
			sink := docsink.NewSink(clients.QBusiness, rt.cfg.QApplicationID, rt.cfg.QIndexID, rt.log)

			opts := pipeline.SyncerOptions{
				Directory:         rt.directory(),
				SensitiveAccounts: rt.cfg.SensitiveAccounts,
			}
			if rt.cfg.MetricsNamespace != "" {
				opts.Metrics = pipeline.NewMetricsRecorder(clients.CloudWatch, rt.cfg.MetricsNamespace, rt.log)
			}

			syncer := pipeline.NewSyncer(source, sink, rt.cfg.SyncInterval, opts, rt.log)

			if once {
				result, err := syncer.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				printSyncResult(os.Stdout, result)
				return nil
			}
			return syncer.Run(cmd.Context(), rt.cfg.SyncInterval)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single sync cycle and exit")
	return cmd
}

func newNotifyCmd(debug *bool) *cobra.Command {
	var messageFile string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Enrich a raw detector alert and publish the insight report",
		Long: "Reads one raw detector alert message (JSON) from --message-file or stdin,\n" +
			"gathers cost, root-cause, and usage enrichment, and publishes the composed\n" +
			"report to the notification topic.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *debug)
			if err != nil {
				return err
			}
			if err := rt.cfg.RequireNotification(); err != nil {
				return err
			}

			message, err := readMessage(messageFile)
			if err != nil {
				return err
			}

			clients := rt.session.Clients
			publisher := notify.NewPublisher(clients.SNS, rt.cfg.NotifTopicARN, rt.log)

			opts := pipeline.EnricherOptions{
				Usage: usage.NewVerifier(clients.EC2, clients.Lambda, clients.CloudWatch,
					rt.cfg.AnomalyWindow, rt.log),
				SensitiveAccounts: rt.cfg.SensitiveAccounts,
			}
			if rt.cfg.EnableCostAnalysis {
				opts.Cost = costimpact.New(clients.CostExplorer, rt.log)
			}
			if rt.cfg.EnableRootCauseAnalysis {
				opts.RootCause = rootcause.New(clients.CloudWatch, rt.log)
			}
			if rt.cfg.MetricsNamespace != "" {
				opts.Metrics = pipeline.NewMetricsRecorder(clients.CloudWatch, rt.cfg.MetricsNamespace, rt.log)
			}

			enricher := pipeline.NewEnricher(publisher, detector.DefaultNamePrefix, opts, rt.log)

			report, err := enricher.HandleAlert(cmd.Context(), message)
			if err != nil {
				return err
			}
			fmt.Printf("Published: %s\n", report.Subject)
			return nil
		},
	}

	cmd.Flags().StringVar(&messageFile, "message-file", "", "Path to the raw alert message (default: read stdin)")
	return cmd
}

func newAccountsCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List active organization accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), *debug)
			if err != nil {
				return err
			}

			accounts, err := rt.directory().ListActiveAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("list accounts: %w", err)
			}
			printAccounts(os.Stdout, accounts)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(version.Info())
		},
	}
}

// directory builds the account directory, with the DynamoDB cache attached
// when a table is configured.
func (r *runtime) directory() *directory.DefaultDirectory {
	clients := r.session.Clients

	var cache *directory.AccountCache
	if r.cfg.AccountCacheTable != "" {
		cache = directory.NewAccountCache(clients.DynamoDB, r.cfg.AccountCacheTable, 0)
	}
	return directory.New(clients.Organizations, clients.IAM, cache, r.log)
}

// readMessage reads the raw alert payload from path, or stdin when path is
// empty.
func readMessage(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read alert from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read alert file %q: %w", path, err)
	}
	return string(data), nil
}

// printRegistrations renders the per-detector registration outcome table.
func printRegistrations(w io.Writer, results []models.DetectorRegistrationResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No detectors registered.")
		return
	}

	fmt.Fprintf(w, "%-28s  %-8s  %s\n", "DETECTOR", "STATUS", "DETAIL")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, res := range results {
		detail := res.ID
		if res.Error != "" {
			detail = res.Error
		}
		fmt.Fprintf(w, "%-28s  %-8s  %s\n", res.Name, string(res.Status), detail)
	}
}

// printSyncResult renders the outcome of one sync cycle.
func printSyncResult(w io.Writer, result *models.SyncResult) {
	fmt.Fprintf(w, "Synced:  %d\n", result.SuccessCount)
	fmt.Fprintf(w, "Failed:  %d\n", len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(w, "  - %s: %s\n", f.ID, f.Error)
	}
}

// printAccounts renders the active-accounts table.
func printAccounts(w io.Writer, accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No active accounts.")
		return
	}

	fmt.Fprintf(w, "%-14s  %-28s  %-32s  %s\n", "ACCOUNT ID", "NAME", "EMAIL", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, a := range accounts {
		fmt.Fprintf(w, "%-14s  %-28s  %-32s  %s\n", a.ID, a.Name, a.Email, string(a.Status))
	}
}
