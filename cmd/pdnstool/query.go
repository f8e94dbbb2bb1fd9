package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/crawl"
	"github.com/nao1215/passivedns/internal/database"
	"github.com/nao1215/passivedns/internal/dispatch"
	pdnslog "github.com/nao1215/passivedns/internal/log"
	"github.com/nao1215/passivedns/internal/metrics"
	"github.com/nao1215/passivedns/internal/model"
	"github.com/nao1215/passivedns/internal/provider"
	"github.com/nao1215/passivedns/internal/report"
	"github.com/nao1215/passivedns/internal/state"
	"github.com/nao1215/passivedns/internal/transport"
)

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// NewQueryCmd creates the query command.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [flags] <ip|domain|cidr>...",
		Short: "Query passive DNS providers and optionally crawl the answers",
		Long: `Query asks every selected provider about each target at the same time
and merges their answers. With -r greater than 1 the answers are queried
in turn, up to the given depth.

Targets are read from standard input, one per line, when none are given
as arguments.

Providers are selected by letter with -d (see "pdnstool providers"):
  3 360.cn  b BFK.de  c CIRCL  d DNSDB  m Mnemonic
  o OSC  p PassiveTotal  r RiskIQ  t TCPIPUtils  v VirusTotal

Examples:
  # Ask BFK about a domain
  pdnstool query example.org

  # Ask DNSDB and VirusTotal, output JSON
  pdnstool query -d dv -j 192.0.2.1

  # Crawl two levels deep into a resumable state file and draw a graph
  pdnstool query -d d -r 2 -f crawl.db -z example.org > pdns.dot

  # Route provider traffic through an embedded Tor daemon
  pdnstool query --tor -d c example.org`,
		Args: cobra.ArbitraryArgs,
		RunE: runQueryCmd,
	}

	cmd.Flags().StringP("databases", "d", "b",
		"Provider letters to query (e.g. \"dvt\")")
	cmd.Flags().StringP("file", "f", "",
		"SQLite state file for a resumable crawl (bare names go to the XDG data directory)")
	cmd.Flags().IntP("recurse", "r", config.DefaultRecurseDepth,
		"Recursion depth; 1 queries only the targets")
	cmd.Flags().StringP("wait", "w", "0",
		"Wait between queries, in seconds or as a duration (e.g. 30, 1m)")
	cmd.Flags().IntP("limit", "l", 0,
		"Maximum records taken from each provider per query (0 = no limit)")

	cmd.Flags().String("config", "",
		"Configuration file path (default: .pdnstool in current or home directory)")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Default lookup timeout per provider")

	cmd.Flags().String("proxy", "",
		"Route provider traffic through a proxy (socks5://host:port or http://host:port)")
	cmd.Flags().Bool("tor", false,
		"Route provider traffic through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("metrics-addr", "",
		"Expose Prometheus metrics on this address (e.g. :9090)")

	addOutputFlags(cmd)

	return cmd
}

// runQueryCmd executes the query command.
func runQueryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := pdnslog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runQuery(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from cobra command flags, the provider file
// and the targets given as arguments or on stdin.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.UserAgent = userAgent()

	letters, err := cmd.Flags().GetString("databases")
	if err != nil {
		return nil, err
	}
	if cfg.Providers, err = provider.ParseLetters(letters); err != nil {
		return nil, err
	}

	if cfg.StatePath, err = cmd.Flags().GetString("file"); err != nil {
		return nil, err
	}
	cfg.StatePath = config.ResolveStatePath(cfg.StatePath)

	if cfg.RecurseDepth, err = cmd.Flags().GetInt("recurse"); err != nil {
		return nil, err
	}

	wait, err := cmd.Flags().GetString("wait")
	if err != nil {
		return nil, err
	}
	if cfg.Wait, err = parseWait(wait); err != nil {
		return nil, err
	}

	if cfg.Limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = cmd.Flags().GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = cmd.Flags().GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = cmd.Flags().GetString("metrics-addr"); err != nil {
		return nil, err
	}

	if cfg.Format, cfg.Separator, cfg.OutputFile, err = outputSettings(cmd); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.ProviderFile, err = loadProviderFile(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets = args
	if len(cfg.Targets) == 0 {
		if cfg.Targets, err = readTargets(cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadProviderFile loads the provider file. An explicitly given path must
// exist; otherwise a missing file yields empty settings.
func loadProviderFile(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return config.NewFile(), nil
	}

	file, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return file, nil
}

// parseWait accepts whole seconds ("60") or a duration ("1m").
func parseWait(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid wait %q: %w", s, err)
	}
	return d, nil
}

// readTargets reads one target per line, skipping blank lines.
func readTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			targets = append(targets, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets from stdin: %w", err)
	}
	return targets, nil
}

// runQuery runs the crawl and renders its results. Results gathered before
// a crawl failure or an interrupt are still rendered; the crawl error is
// returned afterwards.
func runQuery(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	for _, notice := range cfg.ApplyProviderPolicy() {
		fmt.Fprintln(stderr, notice)
	}

	client, cleanup, err := setupTransport(ctx, cfg, stderr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	providers, err := provider.Build(cfg.Providers, cfg.ProviderFile,
		provider.WithHTTPClient(client.HTTPClient()),
		provider.WithLogger(logger),
		provider.WithUserAgent(cfg.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("failed to set up providers: %w", err)
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Info().Name
	}
	limit := "none"
	if cfg.Limit > 0 {
		limit = strconv.Itoa(cfg.Limit)
	}
	fmt.Fprintf(stderr, "Using the following providers: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(stderr, "Recursions: %d, Wait time: %s, Limit: %s\n", cfg.RecurseDepth, cfg.Wait, limit)

	dispatchOpts := []dispatch.Option{
		dispatch.WithTimeout(cfg.Timeout),
		dispatch.WithLogger(logger),
	}
	for _, p := range providers {
		info := p.Info()
		dispatchOpts = append(dispatchOpts,
			dispatch.WithProviderTimeout(info.Section, provider.Timeout(info, cfg.ProviderFile, cfg.Timeout)))
	}
	crawlOpts := []crawl.Option{
		crawl.WithLimit(cfg.Limit),
		crawl.WithDelay(cfg.Wait),
		crawl.WithLogger(logger),
	}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		srv := metrics.NewServer(cfg.MetricsAddr, m, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown of metrics server failed", "error", err)
			}
		}()
		dispatchOpts = append(dispatchOpts, dispatch.WithObserver(m))
		crawlOpts = append(crawlOpts, crawl.WithObserver(m))
	}

	queue, err := openQueue(ctx, cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("failed to close crawl state", "error", err)
		}
	}()

	if err := seedQueue(ctx, queue, cfg.Targets, logger); err != nil {
		return err
	}

	dispatcher := dispatch.New(providers, dispatchOpts...)
	stats, crawlErr := crawl.New(dispatcher, crawlOpts...).Run(ctx, queue, cfg.RecurseDepth)
	logger.Info("crawl finished",
		"passes", stats.Passes,
		"queried", stats.Queried,
		"failed", stats.Failed,
		"results", stats.Results,
	)
	if crawlErr != nil && errors.Is(crawlErr, context.Canceled) {
		fmt.Fprintln(stderr, "Interrupted, rendering the results gathered so far")
	}

	// Rendering must not be cut short by the interrupt that ended the crawl.
	if err := render(context.WithoutCancel(ctx), queue, cfg.Format, cfg.Separator, cfg.OutputFile, stdout); err != nil {
		return errors.Join(crawlErr, err)
	}
	if crawlErr != nil {
		return fmt.Errorf("crawl aborted: %w", crawlErr)
	}
	return nil
}

// setupTransport returns the HTTP client factory for provider traffic and
// a cleanup function that stops an embedded Tor daemon.
func setupTransport(ctx context.Context, cfg *config.Config, stderr io.Writer, logger *slog.Logger) (*transport.Client, func(), error) {
	noop := func() {}

	if !cfg.UseTor {
		client, err := transport.New(cfg.ProxyURL, transport.WithUserAgent(cfg.UserAgent))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		if cfg.ProxyURL != "" {
			if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
				return nil, noop, fmt.Errorf("proxy check failed for %s: %w", client.ProxyAddress(), status.Error())
			}
			logger.Info("proxy connection verified", "address", client.ProxyAddress())
		}
		return client, noop, nil
	}

	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintln(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

	embedded := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stopTor := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embedded.NewClient(transport.WithUserAgent(cfg.UserAgent))
	if err != nil {
		stopTor()
		return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
		stopTor()
		return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	logger.Info("embedded Tor daemon started", "socksAddr", embedded.SocksAddr())
	return client, stopTor, nil
}

// openQueue opens the durable state file, or an in-memory queue when path is empty.
func openQueue(ctx context.Context, path string) (state.Queue, error) {
	if path == "" {
		return state.NewMemory(), nil
	}
	db, err := database.Open(ctx, path, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open crawl state: %w", err)
	}
	return db, nil
}

// seedQueue records the targets at depth 0. Onion names and invalid
// labels are skipped with a warning: passive DNS sensors never observe
// onion services.
func seedQueue(ctx context.Context, queue state.Queue, targets []string, logger *slog.Logger) error {
	for _, target := range targets {
		switch kind := model.Classify(target); kind {
		case model.KindOnion, model.KindInvalid:
			logger.Warn("skipping target", "target", target, "kind", kind.String())
			continue
		}
		if _, err := queue.AddQueryAt(ctx, target, model.StatusPending, 0); err != nil {
			return fmt.Errorf("failed to add target %s: %w", target, err)
		}
	}
	return nil
}

// render writes the queue's result log in format.
func render(ctx context.Context, queue state.Queue, format, sep, outputPath string, stdout io.Writer) error {
	out, closeOut, err := openOutput(outputPath, stdout)
	if err != nil {
		return err
	}

	w, err := report.New(format, out, report.WithSeparator(sep))
	if err != nil {
		_ = closeOut()
		return err
	}
	if _, err := w.Write(queue.Results(ctx)); err != nil {
		_ = closeOut()
		return fmt.Errorf("failed to render results: %w", err)
	}
	return closeOut()
}
