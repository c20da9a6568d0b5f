package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"chowspace/pkg/dashboard"
	"chowspace/pkg/menu"
	"chowspace/pkg/order"
)

// tokenEnv supplies the manager token when --token is not given.
const tokenEnv = "CHOWSPACE_MANAGER_TOKEN"

const commandTimeout = 30 * time.Second

func newOrdersCommand(e *env) *cobra.Command {
	var (
		token  string
		filter dashboard.Filter
	)
	managerToken := func() (string, error) {
		if token == "" {
			token = os.Getenv(tokenEnv)
		}
		if token == "" {
			return "", fmt.Errorf("a manager token is required (--token or %s)", tokenEnv)
		}
		return token, nil
	}
	withDashboard := func(cmd *cobra.Command, fn func(ctx context.Context, d *dashboard.Dashboard, token string) error) error {
		tok, err := managerToken()
		if err != nil {
			return err
		}
		api, err := e.backendClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		return fn(ctx, dashboard.New(api, e.logger.Named("dashboard")), tok)
	}

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show the manager's orders for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDashboard(cmd, func(ctx context.Context, d *dashboard.Dashboard, tok string) error {
				orders, err := d.Orders(ctx, tok, filter)
				if err != nil {
					return err
				}
				return dashboard.Render(cmd.OutOrStdout(), orders)
			})
		},
	}
	cmd.PersistentFlags().StringVar(&token, "token", "", "Manager access token (defaults to $"+tokenEnv+")")
	cmd.Flags().StringVar(&filter.Date, "date", "", "Day to show, YYYY-MM-DD in UTC (defaults to today)")
	cmd.Flags().StringVar(&filter.Status, "status", dashboard.StatusAll, "Status filter: all, pending or completed")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle <order-id> <current-status>",
			Short: "Flip an order between pending and completed",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDashboard(cmd, func(ctx context.Context, d *dashboard.Dashboard, tok string) error {
					next, err := d.Toggle(ctx, tok, args[0], order.Status(args[1]))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Order %s marked as %s\n", order.Order{ID: args[0]}.ShortID(), next)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Remove pending orders that were never paid",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDashboard(cmd, func(ctx context.Context, d *dashboard.Dashboard, tok string) error {
					if err := d.Cleanup(ctx, tok); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Pending unpaid orders cleaned up")
					return nil
				})
			},
		},
	)
	return cmd
}

func newMenuCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the menu the storefront serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := menu.Load(e.cfg.Menu.Path)
			if err != nil {
				return err
			}
			return renderMenu(cmd.OutOrStdout(), products)
		},
	}
}

var menuHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func renderMenu(w io.Writer, products []menu.Product) error {
	if len(products) == 0 {
		return errors.New("menu is empty")
	}
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{p.ID, p.Name, p.Category, dashboard.FormatNaira(p.Price)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Name", "Category", "Price").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return menuHeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
