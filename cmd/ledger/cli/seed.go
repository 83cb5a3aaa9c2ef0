package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/tax"
)

// SeedOptions selects what the seed command sets up. With BusinessID nil a
// new business named Name is created first.
type SeedOptions struct {
	BusinessID     *uuid.UUID
	Name           string
	AccountingMode tax.Mode
	FiscalMonth    int
}

func newSeedCommand(rt Runtime) *cobra.Command {
	var business, name, mode string
	var fiscalMonth int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install default tax categories and the starter chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := SeedOptions{Name: name, AccountingMode: tax.Mode(mode), FiscalMonth: fiscalMonth}
			switch {
			case business != "":
				id, err := uuid.Parse(business)
				if err != nil {
					return fmt.Errorf("parsing business id: %w", err)
				}
				opts.BusinessID = &id
			case name == "":
				return errors.New("either --business or --name is required")
			}
			if rt.Seed == nil {
				return errors.New("seeding is not available")
			}
			result, err := rt.Seed(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "business=%s accounts_created=%d\n", result.Business.ID, result.AccountsCreated)
			return nil
		},
	}

	cmd.Flags().StringVar(&business, "business", "", "seed an existing business id")
	cmd.Flags().StringVar(&name, "name", "", "create a business with this name, then seed it")
	cmd.Flags().StringVar(&mode, "mode", "", "accounting mode of a new business (TAX_INCLUSIVE or TAX_EXCLUSIVE)")
	cmd.Flags().IntVar(&fiscalMonth, "fiscal-month", 0, "fiscal year start month of a new business")

	return cmd
}

// RunSeed applies opts through the accounts service.
func RunSeed(ctx context.Context, svc *accounts.Service, opts SeedOptions) (accounts.SeedResult, error) {
	if opts.BusinessID != nil {
		return svc.Seed(ctx, *opts.BusinessID, uuid.Nil)
	}
	return svc.CreateBusiness(ctx, accounts.CreateBusinessInput{
		Name:                 opts.Name,
		AccountingMode:       opts.AccountingMode,
		FiscalYearStartMonth: opts.FiscalMonth,
	})
}
