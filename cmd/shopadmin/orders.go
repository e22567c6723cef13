package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/Sternrassler/shop-admin-client/pkg/orders"
	"github.com/spf13/cobra"
)

// singleOrderLimit is the page size used to locate one order by ID.
const singleOrderLimit = 100

func newOrdersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List and manage orders",
	}
	cmd.AddCommand(
		newOrdersListCmd(a),
		newOrdersAdvanceCmd(a),
		newOrdersDeleteCmd(a),
		newOrdersExportCmd(a),
	)
	return cmd
}

func newOrdersListCmd(a *app) *cobra.Command {
	var (
		page     int
		limit    int
		idFilter string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := a.listFilter().WithIDFilter(idFilter)
			if limit > 0 {
				f = f.WithLimit(limit)
			}
			m, err := a.orderManager(ctx, cmd.OutOrStdout(), f)
			if err != nil {
				return err
			}
			if err := m.Mount(ctx); err != nil {
				return err
			}
			if page > 1 {
				if err := m.GoTo(ctx, page); err != nil {
					return err
				}
			}

			printOrders(cmd.OutOrStdout(), m.Snapshot())
			fmt.Fprintf(cmd.OutOrStdout(), "Delivered income: %s\n", m.Income())
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Orders per page (default from config)")
	cmd.Flags().StringVar(&idFilter, "id", "", "Only orders whose ID contains this text")
	return cmd
}

func printOrders(w io.Writer, snap collection.Snapshot[orders.Order]) {
	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "No orders found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tAMOUNT\tCUSTOMER\tPHONE\tADDRESS\tITEMS")
	for _, o := range snap.Items {
		items := make([]string, 0, len(o.Lines))
		for _, l := range o.Lines {
			items = append(items, fmt.Sprintf("%dx %s (%s)", l.Quantity, l.Title(), l.Total()))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.Status, o.Amount, o.User.Username, o.Phone, o.Address, strings.Join(items, ", "))
	}
	tw.Flush()

	fmt.Fprintf(w, "\nPage %d of %d (%d orders)\n", snap.Window.CurrentPage, snap.Window.TotalPages, snap.TotalCount)
}

// mountOrder prepares a manager whose visible page contains order id.
func mountOrder(cmd *cobra.Command, a *app, id string) (*orders.Manager, error) {
	ctx := cmd.Context()
	f := a.listFilter().WithIDFilter(id).WithLimit(singleOrderLimit)
	m, err := a.orderManager(ctx, cmd.OutOrStdout(), f)
	if err != nil {
		return nil, err
	}
	if err := m.Mount(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func newOrdersAdvanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "advance ORDER_ID",
		Aliases: []string{"confirm", "deliver"},
		Short:   "Move an order to its next status (pending to confirmed to delivered)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mountOrder(cmd, a, args[0])
			if err != nil {
				return err
			}
			status, err := m.Advance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s is %s\n", args[0], status)
			fmt.Fprintf(cmd.OutOrStdout(), "Delivered income: %s\n", m.Income())
			return nil
		},
	}
}

func newOrdersDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ORDER_ID",
		Short: "Delete an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mountOrder(cmd, a, args[0])
			if err != nil {
				return err
			}
			_, err = m.Remove(cmd.Context(), args[0])
			return err
		},
	}
}

func newOrdersExportCmd(a *app) *cobra.Command {
	var (
		idFilter string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every order as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.orderManager(ctx, cmd.ErrOrStderr(), a.listFilter().WithIDFilter(idFilter))
			if err != nil {
				return err
			}
			all, err := m.Export(ctx)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			case "csv":
				return writeOrdersCSV(cmd.OutOrStdout(), all)
			default:
				return fmt.Errorf("unknown format %q (want json or csv)", format)
			}
		},
	}
	cmd.Flags().StringVar(&idFilter, "id", "", "Only orders whose ID contains this text")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv")
	return cmd
}

func writeOrdersCSV(w io.Writer, all []orders.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "status", "amount", "username", "email", "phone", "address", "items"}); err != nil {
		return err
	}
	for _, o := range all {
		qty := 0
		for _, l := range o.Lines {
			qty += l.Quantity
		}
		if err := cw.Write([]string{
			o.ID, string(o.Status), o.Amount.String(), o.User.Username, o.User.Email,
			o.Phone, o.Address.String(), strconv.Itoa(qty),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func newIncomeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "income",
		Short: "Show the delivered income total",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.shopClient(cmd.Context())
			if err != nil {
				return err
			}
			v, err := orders.NewAPI(c).DeliveredIncome(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
