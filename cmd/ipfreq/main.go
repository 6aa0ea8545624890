// Command ipfreq resolves a list of URLs or domains to IP addresses and
// reports which addresses are shared by many of them.
//
// Usage:
//
//	ipfreq --file <urls.txt> --output <report.txt> [--threads N]
//	ipfreq version
//
// Every input line is stripped of a leading http:// or https:// and
// resolved (A first, AAAA when the name has no A record). Each resolved
// address is printed as "domain | IP". When all lookups are done the
// report is written with one "address:IP | count:N" line per address seen
// more than --min-count times, most frequent first.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lc/ipfreq/internal/buildinfo"
	"github.com/lc/ipfreq/internal/config"
	"github.com/lc/ipfreq/internal/dnsresolver"
	"github.com/lc/ipfreq/internal/domain"
	"github.com/lc/ipfreq/internal/engine"
	"github.com/lc/ipfreq/internal/filesys"
	"github.com/lc/ipfreq/internal/log"
	"github.com/lc/ipfreq/internal/report"
	"github.com/lc/ipfreq/internal/tally"
)

const _resolvConf = "/etc/resolv.conf"

type options struct {
	file       string
	output     string
	threads    int
	configPath string
	verbose    bool
	resolvers  []string
	minCount   int
	summary    int
}

func main() {
	defer log.Sync()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:   "ipfreq --file <path> --output <path>",
		Short: "Resolve domains and report the most shared IP addresses",
		Long: `ipfreq resolves every URL or domain in a file concurrently and counts how
many of them resolve to each IP address. Addresses seen more than
--min-count times are written to the output file, most frequent first.

Lines that are already IP addresses (for example http://192.0.2.1) are
counted as that address without a DNS query.`,
		Example:       "ipfreq -f urls.txt -o out/report.txt -t 200",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "file with one URL or domain per line")
	flags.StringVarP(&opts.output, "output", "o", "", "report file; parent directories are created")
	flags.IntVarP(&opts.threads, "threads", "t", engine.DefaultWorkers, "maximum concurrent lookups")
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/"+config.DefaultConfigPath+")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log per-domain failures to stderr")
	flags.StringArrayVar(&opts.resolvers, "resolver", nil, "DNS server host:port (repeatable; default from config or "+_resolvConf+")")
	flags.IntVar(&opts.minCount, "min-count", report.DefaultMinCount, "report addresses seen more than this many times")
	flags.IntVar(&opts.summary, "summary", 0, "print the top N report rows as a table")
	_ = root.MarkFlagRequired("file")
	_ = root.MarkFlagRequired("output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\n", buildinfo.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", buildinfo.Commit)
		},
	}
	root.AddCommand(versionCmd)

	return root
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := config.New(opts.configPath).Load()
	if err != nil {
		return fail(cmd, "config error: %v", err)
	}
	applyFlags(cmd, &opts, cfg)
	if err := cfg.Validate(); err != nil {
		return fail(cmd, "config error: %v", err)
	}
	log.SetVerbose(cfg.Verbose)

	fsys := filesys.OS()

	// phase 1: the domain list is the only fatal input
	domains, err := domain.Load(fsys, opts.file)
	if err != nil {
		return fail(cmd, "failed to read input file: %v", err)
	}

	start := time.Now()

	// phase 2
	servers := cfg.Resolver.Servers
	if len(servers) == 0 {
		servers = dnsresolver.SystemResolvers(_resolvConf)
	}
	resolver := dnsresolver.New(cfg.Resolver.Timeout,
		dnsresolver.WithResolvers(servers),
		dnsresolver.WithAttempts(cfg.Resolver.Attempts),
		dnsresolver.WithRetryDelay(cfg.Resolver.RetryDelay),
	)
	table := tally.New()
	stats := engine.New(resolver, table, cmd.OutOrStdout(), cfg.Pool.Threads).
		Run(context.Background(), domains)
	log.Debug("resolution finished",
		"run", stats.RunID,
		"domains", stats.Domains,
		"resolved", stats.Resolved,
		"failed", stats.Failed,
		"distinct_ips", table.Len(),
	)

	// phase 3: a failed write is reported but does not change the exit code
	entries, err := report.NewWriter(fsys, cfg.Report.MinCount).Write(opts.output, table.Snapshot())
	if err != nil {
		color.New(color.FgHiRed).Fprintf(cmd.ErrOrStderr(), "failed to write output file: %v\n", err)
	} else if opts.summary > 0 && len(entries) > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		report.RenderTable(cmd.OutOrStdout(), entries, opts.summary)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	color.New(color.FgGreen, color.Bold).Fprintln(out, "Task completed!")
	fmt.Fprintf(out, "Results saved to %s\n", opts.output)
	fmt.Fprintf(out, "Total time: %.2f seconds\n", time.Since(start).Seconds())
	return nil
}

// applyFlags lets explicitly set flags win over the config file.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Pool.Threads = opts.threads
	}
	if flags.Changed("min-count") {
		cfg.Report.MinCount = opts.minCount
	}
	if len(opts.resolvers) > 0 {
		cfg.Resolver.Servers = opts.resolvers
	}
	if opts.verbose {
		cfg.Verbose = true
	}
}

func fail(cmd *cobra.Command, format string, a ...any) error {
	err := fmt.Errorf(format, a...)
	color.New(color.FgHiRed, color.Bold).Fprintln(cmd.ErrOrStderr(), err)
	return err
}
