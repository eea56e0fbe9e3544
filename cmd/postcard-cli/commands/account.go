package commands

import (
	"context"
	"fmt"
	"sort"

	"postcard-creator/lib/platforms/postcreator/core"
	"postcard-creator/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(balanceCmd)
}

// withSession opens a session from the global flags and runs fn through it.
func withSession(ctx context.Context, fn func(client *core.Client) error) error {
	s, err := openSession(state.cfg, *tokenCache, *traceDir)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.run(ctx, fn)
}

func fieldsTable(fields map[string]any) table.Writer {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, fmt.Sprint(fields[k])})
	}
	return t
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account of the configured user.",
	Run: func(cmd *cobra.Command, args []string) {
		var user core.User
		err := withSession(cmd.Context(), func(client *core.Client) (err error) {
			user, err = client.GetCurrentUser(cmd.Context())
			return err
		})
		if err != nil {
			serviceutil.Fatal("failed to get current user", err)
		}
		fieldsTable(user.Fields).Render()
	},
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show whether a free postcard can be sent right now.",
	Run: func(cmd *cobra.Command, args []string) {
		var quota core.Quota
		err := withSession(cmd.Context(), func(client *core.Client) (err error) {
			quota, err = client.GetQuota(cmd.Context())
			return err
		})
		if err != nil {
			serviceutil.Fatal("failed to get quota", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Available", "Next"})
		next := quota.Next
		if quota.Available {
			next = "now"
		}
		t.AppendRow(table.Row{quota.Available, next})
		t.Render()
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the billing balance of the account.",
	Run: func(cmd *cobra.Command, args []string) {
		var balance core.BillingBalance
		err := withSession(cmd.Context(), func(client *core.Client) (err error) {
			balance, err = client.GetBillingBalance(cmd.Context())
			return err
		})
		if err != nil {
			serviceutil.Fatal("failed to get billing balance", err)
		}
		fieldsTable(balance).Render()
	},
}
