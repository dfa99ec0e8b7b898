package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"twaler/pkg/auth"
	"twaler/pkg/checkpoint"
	"twaler/pkg/config"
	"twaler/pkg/crawler"
	"twaler/pkg/ledger"
	"twaler/pkg/logger"
	"twaler/pkg/storage"
	"twaler/pkg/ui"
)

var (
	// Crawl command flags
	instanceDir   string
	cacheDir      string
	workers       int
	maxPages      int
	rateLimit     int
	accountName   string
	useAuth       bool
	checkQuota    bool
	noLedger      bool
	progressEvery time.Duration
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <seedfile>",
	Short: "Crawl every seed in a seed file into a new cache instance",
	Long: `Crawl every seed in a seed file.

Each line of the seed file is

  [<kinds>\t]<user_id>[ <list slug or start cursor>]

where kinds is any of u (profile), t (timeline), f (friends),
m (list memberships), l (list members) or * for all of them. Lines starting
with # are comments.

Every run writes into a fresh instance directory named after its start time
under the configured cache directory, unless --instance names one.`,
	Example: `  # Crawl with default settings
  twaler crawl seeds/0001.txt

  # Eight workers, at most 120 requests a minute
  twaler crawl seeds/0001.txt --workers 8 --rate-limit 120

  # Authenticated crawl with a stored account
  twaler crawl seeds/0001.txt --auth --account crawler1`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&instanceDir, "instance", "", "write into this instance directory instead of a new one")
	crawlCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "parent directory of cache instances")
	crawlCmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of crawl workers")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", -1, "stop each pagination after this many pages (0 = no cap)")
	crawlCmd.Flags().IntVar(&rateLimit, "rate-limit", -1, "requests per minute across all workers (0 = unlimited)")
	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	crawlCmd.Flags().BoolVar(&useAuth, "auth", false, "send Basic credentials with every request")
	crawlCmd.Flags().BoolVar(&checkQuota, "check-quota", true, "wait for a positive quota before each seed")
	crawlCmd.Flags().BoolVar(&noLedger, "no-ledger", false, "do not record fetch outcomes in the run ledger")
	crawlCmd.Flags().DurationVar(&progressEvery, "progress", time.Second, "progress line refresh interval (0 disables it)")
}

func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cacheDir != "" {
		flags["cache-dir"] = cacheDir
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if maxPages >= 0 {
		flags["max-pages"] = maxPages
	}
	if rateLimit >= 0 {
		flags["requests-per-minute"] = rateLimit
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if cmd.Flags().Changed("auth") {
		flags["use-auth"] = useAuth
	}
	if cmd.Flags().Changed("check-quota") {
		flags["check-quota"] = checkQuota
	}
	if noLedger {
		flags["ledger"] = false
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	seedFile := args[0]
	if _, err := os.Stat(seedFile); err != nil {
		return fmt.Errorf("seed file: %w", err)
	}

	cfg, log, err := setup(crawlFlags(cmd))
	if err != nil {
		return err
	}

	creds, err := credentialSource(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	instance := instanceDir
	if instance == "" {
		instance = filepath.Join(cfg.Cache.Dir, time.Now().Format(storage.StampLayout))
	}
	cache, err := storage.NewCache(instance)
	if err != nil {
		return err
	}

	cps, err := checkpoint.NewManager(instance, log)
	if err != nil {
		return err
	}
	opts := []crawler.Option{crawler.WithCheckpoint(cps)}

	if cfg.Cache.Ledger {
		l, err := ledger.Open(filepath.Join(instance, cfg.Cache.LedgerFile), log)
		if err != nil {
			return err
		}
		defer l.Close()
		opts = append(opts, crawler.WithLedger(l))
	}

	printer := ui.Default()
	var progress *ui.ProgressDisplay
	if progressEvery > 0 && !printer.Quiet() {
		progress = ui.NewProgressDisplay(printer.Out())
		opts = append(opts, crawler.WithProgress(progressEvery, progress.Update))
	}

	c, err := crawler.New(cfg, cache, creds, log, opts...)
	if err != nil {
		return err
	}

	printer.Info("Seed file", seedFile)
	printer.Info("Instance", instance)
	printer.Info("Workers", fmt.Sprint(cfg.Crawl.Workers))

	summary, runErr := c.Crawl(cmd.Context(), seedFile)
	if progress != nil {
		progress.Finish()
	}

	if err := keepSeedFile(seedFile, instance); err != nil {
		log.WithError(err).Warn("Failed to copy seed file into instance")
	}

	if summary != nil {
		printer.Panel(ui.RenderRows(ui.CounterRows(summary.Counters())))
		printer.Info("Elapsed", summary.Duration().Round(time.Millisecond).String())
	}
	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}
	printer.Success("Crawl complete: " + instance)
	return nil
}

// credentialSource picks where Basic credentials come from: the config's
// pair when set, otherwise the stored accounts
func credentialSource(ctx context.Context, cfg *config.Config) (auth.Source, error) {
	if !cfg.API.UseAuth {
		return nil, nil
	}
	if cfg.API.Username != "" && cfg.API.Password != "" {
		return auth.NewStaticSource(cfg.API.Username, cfg.API.Password), nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, err
	}
	src := auth.NewManagerSource(manager, cfg.API.Account)
	if _, err := src.Credentials(ctx); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("authentication is enabled but no account is stored; run 'twaler auth login'")
		}
		return nil, err
	}
	logger.GetLogger().WithField("account", cfg.API.Account).Debug("Using stored credentials")
	return src, nil
}

// keepSeedFile copies the seed file into the instance as seed[<name>].txt
func keepSeedFile(seedFile, instance string) error {
	src, err := os.Open(seedFile)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(instance, "seed["+filepath.Base(seedFile)+"].txt"))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
