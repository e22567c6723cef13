package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
	"github.com/spf13/cobra"
)

func newProductsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the product catalogue",
	}
	cmd.AddCommand(newProductsListCmd(a), newProductsShowCmd(a))
	return cmd
}

func newProductsListCmd(a *app) *cobra.Command {
	var (
		page   int
		limit  int
		search string
		sort   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of products",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := collection.ParseSortKey(sort)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cat, err := a.catalog(ctx)
			if err != nil {
				return err
			}
			if err := cat.Load(ctx); err != nil {
				return err
			}

			f := cat.List().Filter().WithSearch(search).WithSort(key)
			if limit > 0 {
				f = f.WithLimit(limit)
			}
			if err := cat.List().SetFilter(ctx, f); err != nil {
				return err
			}
			if err := cat.GoTo(ctx, page); err != nil {
				return err
			}

			snap := cat.Snapshot()
			out := cmd.OutOrStdout()
			if len(snap.Items) == 0 {
				fmt.Fprintln(out, "No products found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tCATEGORY\tCREATED")
			for _, p := range snap.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Price, p.Category, p.CreatedAt.Format(time.DateOnly))
			}
			tw.Flush()
			fmt.Fprintf(out, "\nPage %d of %d (%d products)\n", snap.Window.CurrentPage, snap.Window.TotalPages, snap.TotalCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "Products per page (default from config)")
	cmd.Flags().StringVar(&search, "search", "", "Only products whose title contains this text")
	cmd.Flags().StringVar(&sort, "sort", string(collection.DefaultSort), "Sort: date_new, date, name_a, name_d")
	return cmd
}

func newProductsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show PRODUCT_ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			p, err := cat.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", p.ID)
			fmt.Fprintf(out, "Title:       %s\n", p.Title)
			fmt.Fprintf(out, "Price:       %s\n", p.Price)
			fmt.Fprintf(out, "Category:    %s\n", p.Category)
			fmt.Fprintf(out, "Created:     %s\n", p.CreatedAt.Format(time.RFC3339))
			if p.Image != "" {
				fmt.Fprintf(out, "Image:       %s\n", p.Image)
			}
			if p.Description != "" {
				fmt.Fprintf(out, "\n%s\n", p.Description)
			}
			return nil
		},
	}
}
