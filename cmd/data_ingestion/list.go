package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tarisrizki/provisioning-telkom/internal/cache"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/tarisrizki/provisioning-telkom/internal/query"
)

type listFlags struct {
	page        int
	all         bool
	interactive bool
	filter      models.WorkOrderFilter
}

func newListCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored work orders one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.filter.Validate(); err != nil {
				return err
			}
			return runList(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), flags)
		},
	}
	f := cmd.Flags()
	f.IntVar(&flags.page, "page", 1, "page to print")
	f.BoolVar(&flags.all, "all", false, "print every page starting at --page")
	f.BoolVarP(&flags.interactive, "interactive", "i", false, "browse pages with n, p, g <page>, r and q read from stdin")
	f.StringVar(&flags.filter.Channel, "channel", "", "exact channel")
	f.StringVar(&flags.filter.Branch, "branch", "", "exact branch")
	f.StringVar(&flags.filter.ServiceArea, "service-area", "", "exact service area")
	f.StringVar(&flags.filter.Status, "status", "", "exact status_bima")
	f.StringVar(&flags.filter.OrderID, "order-id", "", "order id substring")
	f.StringVar(&flags.filter.From, "from", "", "first creation day, YYYY-MM-DD")
	f.StringVar(&flags.filter.To, "to", "", "last creation day, YYYY-MM-DD")
	f.StringVar(&flags.filter.Month, "month", "", "month of any date field, YYYY-MM")
	return cmd
}

func runList(ctx context.Context, in io.Reader, out io.Writer, flags listFlags) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pager := query.NewPager(a.store, a.cfg.PageSize, a.logger).WithFallback(a.cache, cache.DatasetKey)
	page, err := pager.SetFilter(ctx, flags.filter)
	if err == nil && flags.page != 1 {
		page, err = pager.GoTo(ctx, flags.page)
	}
	if err == nil && flags.interactive {
		printPage(out, page)
		return browse(ctx, in, out, pager)
	}
	for err == nil {
		printPage(out, page)
		if !flags.all {
			return nil
		}
		page, err = pager.Next(ctx)
	}
	if errors.Is(err, query.ErrNoPage) && flags.all {
		return nil
	}
	return err
}

const browseHelp = "commands: n (next), p (previous), g <page>, r (refresh), q (quit)"

// browse drives one long-lived pager from line commands until q or end of
// input.
func browse(ctx context.Context, in io.Reader, out io.Writer, pager *query.Pager) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var (
			page *query.Page
			err  error
		)
		switch fields[0] {
		case "q", "quit":
			return nil
		case "n", "next":
			page, err = pager.Next(ctx)
		case "p", "prev", "previous":
			page, err = pager.Previous(ctx)
		case "r", "refresh":
			page, err = pager.Refresh(ctx, query.TriggerManual)
		case "g", "go":
			n := 0
			if len(fields) == 2 {
				n, _ = strconv.Atoi(fields[1])
			}
			page, err = pager.GoTo(ctx, n)
		default:
			fmt.Fprintln(out, browseHelp)
			continue
		}

		switch {
		case errors.Is(err, query.ErrNoPage):
			fmt.Fprintln(out, "no such page")
		case err != nil:
			return err
		default:
			printPage(out, page)
		}
	}
}

func printPage(out io.Writer, page *query.Page) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tORDER ID\tWORKORDER\tCHANNEL\tBRANCH\tCREATED\tSTATUS")
	for _, o := range page.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.OrderID, o.WorkOrder, deref(o.Channel), deref(o.Branch), deref(o.DateCreated), deref(o.StatusBima))
	}
	tw.Flush()

	source := "store"
	if page.FromCache {
		source = "local cache"
	}
	fmt.Fprintf(out, "page %d of %d, %d work orders (%s)\n\n", page.CurrentPage, page.TotalPages, page.TotalCount, source)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
