package accounts

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// codeBlock is the size of the numeric code range reserved for each type.
const codeBlock = 100

// CodeBase returns the first code of the block reserved for t: 100 for
// assets through 500 for expenses.
func CodeBase(t AccountType) int {
	return (t.Rank() + 1) * codeBlock
}

// NextAccountCode returns the code following the highest numeric code of
// type t inside its block.
func NextAccountCode(t AccountType, existing []Account) (string, error) {
	base := CodeBase(t)
	last := base + codeBlock - 1
	highest := 0
	for _, a := range existing {
		if a.Type != t {
			continue
		}
		n, err := strconv.Atoi(a.Code)
		if err != nil || n < base || n > last {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	next := base
	if highest != 0 {
		next = highest + 1
	}
	if next > last {
		return "", &shared.ConflictError{Reason: shared.ReasonCodeRangeFull, Detail: "no free " + string(t) + " code between " + strconv.Itoa(base) + " and " + strconv.Itoa(last)}
	}
	return strconv.Itoa(next), nil
}

// CreateAccountInput describes a new chart entry. An empty Code is assigned
// from the type's block.
type CreateAccountInput struct {
	BusinessID    uuid.UUID
	ActorID       uuid.UUID
	Code          string
	Name          string
	Type          AccountType
	TaxCategoryID uuid.UUID
}

// CreateAccount adds an account to the chart.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	name := strings.TrimSpace(in.Name)
	code := strings.TrimSpace(in.Code)
	if name == "" {
		return Account{}, shared.Malformed("account name is required")
	}
	if !in.Type.Valid() {
		return Account{}, shared.Malformed("unknown account type %q", in.Type)
	}
	if in.TaxCategoryID == uuid.Nil {
		return Account{}, shared.Malformed("tax category is required")
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		if err := ensureTaxCategory(ctx, tx, in.TaxCategoryID); err != nil {
			return err
		}
		chart, err := tx.ListAccounts(ctx, in.BusinessID, false)
		if err != nil {
			return err
		}
		if code == "" {
			if code, err = NextAccountCode(in.Type, chart); err != nil {
				return err
			}
		} else if codeTaken(chart, code, uuid.Nil) {
			return duplicateCodeConflict(code)
		}
		categoryID := in.TaxCategoryID
		created, err = tx.InsertAccount(ctx, Account{
			ID:            uuid.New(),
			BusinessID:    in.BusinessID,
			Code:          code,
			Name:          name,
			Type:          in.Type,
			TaxCategoryID: &categoryID,
			IsActive:      true,
		})
		return err
	})
	if err != nil {
		return Account{}, shared.Internal("create account", err)
	}
	s.bump(ctx, in.BusinessID)
	s.record(ctx, platformshared.AuditLog{
		BusinessID: in.BusinessID,
		ActorID:    in.ActorID,
		Action:     "account.create",
		Entity:     "account",
		EntityID:   created.ID.String(),
		Meta:       map[string]any{"code": created.Code, "type": string(created.Type)},
	})
	return created, nil
}

// UpdateAccountInput patches an active account; nil fields are left unchanged.
type UpdateAccountInput struct {
	BusinessID    uuid.UUID
	AccountID     uuid.UUID
	ActorID       uuid.UUID
	Code          *string
	Name          *string
	Type          *AccountType
	TaxCategoryID *uuid.UUID
}

func (in UpdateAccountInput) empty() bool {
	return in.Code == nil && in.Name == nil && in.Type == nil && in.TaxCategoryID == nil
}

// UpdateAccount applies a partial change to an active account.
func (s *Service) UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error) {
	if in.empty() {
		return Account{}, shared.Malformed("no account fields to update")
	}
	if in.Code != nil && strings.TrimSpace(*in.Code) == "" {
		return Account{}, shared.Malformed("account code must not be empty")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Account{}, shared.Malformed("account name must not be empty")
	}
	if in.Type != nil && !in.Type.Valid() {
		return Account{}, shared.Malformed("unknown account type %q", *in.Type)
	}
	if in.TaxCategoryID != nil && *in.TaxCategoryID == uuid.Nil {
		return Account{}, shared.Malformed("tax category is required")
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, in.BusinessID); err != nil {
			return err
		}
		next, err := loadActiveAccount(ctx, tx, in.BusinessID, in.AccountID)
		if err != nil {
			return err
		}
		if in.Code != nil {
			code := strings.TrimSpace(*in.Code)
			if code != next.Code {
				chart, err := tx.ListAccounts(ctx, in.BusinessID, false)
				if err != nil {
					return err
				}
				if codeTaken(chart, code, next.ID) {
					return duplicateCodeConflict(code)
				}
			}
			next.Code = code
		}
		if in.Name != nil {
			next.Name = strings.TrimSpace(*in.Name)
		}
		if in.Type != nil {
			next.Type = *in.Type
		}
		if in.TaxCategoryID != nil {
			if err := ensureTaxCategory(ctx, tx, *in.TaxCategoryID); err != nil {
				return err
			}
			categoryID := *in.TaxCategoryID
			next.TaxCategoryID = &categoryID
		}
		updated, err = tx.UpdateAccount(ctx, next)
		return err
	})
	if err != nil {
		return Account{}, shared.Internal("update account", err)
	}
	s.bump(ctx, in.BusinessID)
	s.record(ctx, platformshared.AuditLog{
		BusinessID: in.BusinessID,
		ActorID:    in.ActorID,
		Action:     "account.update",
		Entity:     "account",
		EntityID:   updated.ID.String(),
		Meta:       map[string]any{"code": updated.Code, "type": string(updated.Type)},
	})
	return updated, nil
}

// DeactivateAccount hides an active account from the chart. Posted lines keep
// referencing it.
func (s *Service) DeactivateAccount(ctx context.Context, businessID, accountID, actorID uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBusiness(ctx, businessID); err != nil {
			return err
		}
		account, err := loadActiveAccount(ctx, tx, businessID, accountID)
		if err != nil {
			return err
		}
		account.IsActive = false
		_, err = tx.UpdateAccount(ctx, account)
		return err
	})
	if err != nil {
		return shared.Internal("deactivate account", err)
	}
	s.bump(ctx, businessID)
	s.record(ctx, platformshared.AuditLog{
		BusinessID: businessID,
		ActorID:    actorID,
		Action:     "account.deactivate",
		Entity:     "account",
		EntityID:   accountID.String(),
	})
	return nil
}

func loadActiveAccount(ctx context.Context, tx TxRepository, businessID, accountID uuid.UUID) (Account, error) {
	found, err := tx.FindAccounts(ctx, businessID, []uuid.UUID{accountID})
	if err != nil {
		return Account{}, err
	}
	if len(found) == 0 || !found[0].IsActive {
		return Account{}, shared.NotFound("account", accountID)
	}
	return found[0], nil
}

func ensureTaxCategory(ctx context.Context, tx TxRepository, id uuid.UUID) error {
	found, err := tx.FindTaxCategories(ctx, []uuid.UUID{id})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return shared.UnknownReference("tax category", id)
	}
	return nil
}

func codeTaken(chart []Account, code string, except uuid.UUID) bool {
	for _, a := range chart {
		if a.Code == code && a.ID != except {
			return true
		}
	}
	return false
}

func duplicateCodeConflict(code string) error {
	return &shared.ConflictError{Reason: shared.ReasonDuplicateCode, Detail: "account code " + code + " already exists"}
}
