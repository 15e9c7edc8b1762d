package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

func migrateCmd(build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Pool == nil {
				return errors.New("migrate needs PG_URL or STORE_BACKEND=postgres")
			}
			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func applyCmd(build builder) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply one webhook notification body",
		Long: `Apply a webhook-shaped notification, exactly as POST /payments/webhook would.

Exit codes: 0 applied or ignored, 2 invalid notification, 3 no order for the
external reference, 1 anything else. Needs the postgres store.

Examples:
  reconcilerctl apply --file notification.json
  echo '{"type":"payment","data":{...}}' | reconcilerctl apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var env domain.Envelope
			if err := json.NewDecoder(in).Decode(&env); err != nil {
				return &application.ValidationError{Field: "body", Reason: err.Error()}
			}

			a, err := build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.HandleEnvelope(cmd.Context(), env)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "notification JSON file, - or empty for stdin")
	return cmd
}

func orderCmd(build builder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect orders",
	}

	var ref string
	get := &cobra.Command{
		Use:   "get [order-id]",
		Short: "Print an order by id or by --ref external reference",
		Long: `Print an order by id or by --ref external reference.

Exits 4 when no order matches.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := application.OrderRef{ExternalReference: ref}
			if len(args) == 1 {
				q.ID = args[0]
			}
			a, err := build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.Engine.QueryOrder(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	}
	get.Flags().StringVar(&ref, "ref", "", "external reference")
	cmd.AddCommand(get)
	return cmd
}

func paymentCmd(build builder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Reconcile payments against the gateway",
	}

	var (
		status string
		ref    string
		amount string
	)
	sync := &cobra.Command{
		Use:   "sync <gateway-id>",
		Short: "Look a payment up at the gateway and apply its current status",
		Long: `Look a payment up at the gateway and apply its current status.

With GATEWAY_MODE=mock the gateway only knows what --status, --ref and
--amount describe, which is handy for rehearsing a reconciliation. Exits 4
when the gateway has no such payment.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Mock != nil && status != "" {
				data := domain.NotificationData{ID: domain.GatewayID(args[0]), Status: status, ExternalReference: ref}
				if amount != "" {
					d, err := decimal.NewFromString(amount)
					if err != nil {
						return &application.ValidationError{Field: "amount", Reason: err.Error()}
					}
					data.TransactionAmount = &d
				}
				a.Mock.Put(data)
			}

			res, err := a.Syncer.Sync(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	sync.Flags().StringVar(&status, "status", "", "mock gateway: payment status")
	sync.Flags().StringVar(&ref, "ref", "", "mock gateway: external reference")
	sync.Flags().StringVar(&amount, "amount", "", "mock gateway: transaction amount")
	cmd.AddCommand(sync)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
