package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/failwatch/pkg/client"
	"github.com/cuemby/failwatch/pkg/types"
	"github.com/spf13/cobra"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Inspect and promote captured failing hosts",
}

var hostsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List failing hosts, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := newClient(cmd)
		defer cancel()

		records, err := c.ListHosts(ctx)
		if err != nil {
			return err
		}
		filter, _ := cmd.Flags().GetString("filter")
		records = filterRecords(records, filter)

		format, _ := cmd.Flags().GetString("output")
		if handled, err := writeStructured(os.Stdout, format, records); handled {
			return err
		}
		printRecords(os.Stdout, records, time.Now())
		return nil
	},
}

var hostsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every failing host",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := newClient(cmd)
		defer cancel()

		n, err := c.ClearHosts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Cleared %d host(s)\n", n)
		return nil
	},
}

var hostsPruneCmd = &cobra.Command{
	Use:   "prune HOST [HOST...]",
	Short: "Remove specific hosts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := newClient(cmd)
		defer cancel()

		n, err := c.PruneHosts(ctx, args)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Pruned %d host(s)\n", n)
		return nil
	},
}

var hostsSubmitCmd = &cobra.Command{
	Use:   "submit DOMAIN [DOMAIN...]",
	Short: "Send domains to the allow-list service without pruning",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := newClient(cmd)
		defer cancel()

		results, err := c.AddToProxy(ctx, args)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		if handled, err := writeStructured(os.Stdout, format, results); handled {
			return err
		}
		printSubmitResults(os.Stdout, results)
		return nil
	},
}

var hostsPromoteCmd = &cobra.Command{
	Use:   "promote [DOMAIN...]",
	Short: "Add domains to the allow-list and prune the accepted ones",
	Long: `Submit domains to the allow-list service, then remove from the ledger
every domain the service accepted. Rejected or unreachable domains stay in
the ledger. With --all, every currently recorded host is promoted, narrowed
by --filter when given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := newClient(cmd)
		defer cancel()

		domains := args
		if all, _ := cmd.Flags().GetBool("all"); all {
			records, err := c.ListHosts(ctx)
			if err != nil {
				return err
			}
			filter, _ := cmd.Flags().GetString("filter")
			domains = nil
			for _, r := range filterRecords(records, filter) {
				domains = append(domains, r.Host)
			}
		}
		if len(domains) == 0 {
			return fmt.Errorf("no domains selected")
		}

		res, err := c.Promote(ctx, domains)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		if handled, err := writeStructured(os.Stdout, format, res); handled {
			return err
		}
		printSubmitResults(os.Stdout, res.Results)
		fmt.Printf("\n✓ Pruned %d of %d host(s)\n", res.Pruned, len(domains))
		return nil
	},
}

func init() {
	hostsCmd.PersistentFlags().String("server", "", "failwatch API address (defaults to api.addr)")
	hostsCmd.PersistentFlags().Duration("timeout", 60*time.Second, "Request timeout")

	for _, c := range []*cobra.Command{hostsListCmd, hostsSubmitCmd, hostsPromoteCmd} {
		c.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
	}
	hostsPromoteCmd.Flags().Bool("all", false, "Promote every recorded host")
	for _, c := range []*cobra.Command{hostsListCmd, hostsPromoteCmd} {
		c.Flags().String("filter", "", "Only hosts containing this substring (case-insensitive)")
	}

	hostsCmd.AddCommand(hostsListCmd)
	hostsCmd.AddCommand(hostsClearCmd)
	hostsCmd.AddCommand(hostsPruneCmd)
	hostsCmd.AddCommand(hostsSubmitCmd)
	hostsCmd.AddCommand(hostsPromoteCmd)
}

// newClient builds an API client from --server or the configured API address
func newClient(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc) {
	addr, _ := cmd.Flags().GetString("server")
	if addr == "" {
		addr = localAddr(cfg.API.Addr)
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if timeout <= 0 {
		ctx, cancel := context.WithCancel(context.Background())
		return client.NewClient(addr), ctx, cancel
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return client.NewClient(addr), ctx, cancel
}

// filterRecords keeps records whose host contains substr, ignoring case.
// An empty substr keeps everything.
func filterRecords(records []types.FailureRecord, substr string) []types.FailureRecord {
	substr = strings.ToLower(strings.TrimSpace(substr))
	if substr == "" {
		return records
	}
	kept := make([]types.FailureRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(r.Host, substr) {
			kept = append(kept, r)
		}
	}
	return kept
}

// localAddr turns a listen address such as ":9098" into a dialable one
func localAddr(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "127.0.0.1" + listen
	}
	return listen
}
