package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"twaler/pkg/ratelimit"
	"twaler/pkg/twitter"
	"twaler/pkg/ui"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the remaining API call budget",
	Long: `Query the rate-limit-status endpoint once, with the same retry policy
the crawl workers use, and print the remaining call budget. A failed query
prints 0.`,
	Args: cobra.NoArgs,
	RunE: runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().BoolVar(&useAuth, "auth", false, "query with stored credentials")
	quotaCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
}

func runQuota(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if cmd.Flags().Changed("auth") {
		flags["use-auth"] = useAuth
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	cfg, log, err := setup(flags)
	if err != nil {
		return err
	}
	creds, err := credentialSource(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	endpoints, err := twitter.NewEndpoints(cfg.API.BaseURL, cfg.API.Format)
	if err != nil {
		return err
	}

	conn := twitter.NewConn(cfg.API.Timeout)
	defer conn.Close()

	gate := ratelimit.NewQuotaGate(conn, ratelimit.QuotaConfig{
		URL:       endpoints.Quota(),
		UseAuth:   cfg.API.UseAuth,
		UserAgent: cfg.API.UserAgent,
		Attempts:  cfg.Crawl.QuotaAttempts,
		RetryGap:  cfg.Crawl.QuotaRetryGap,
	}, creds, log)

	remaining := gate.Remaining(cmd.Context())
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	ui.PrintInfo("Endpoint", endpoints.Quota())
	ui.PrintInfo("Remaining", fmt.Sprint(remaining))
	if remaining == 0 {
		ui.PrintWarning("No calls left, or the endpoint could not be read")
	}
	return nil
}
