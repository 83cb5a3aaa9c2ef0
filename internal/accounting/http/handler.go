package accountinghttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type journalService interface {
	Submit(ctx context.Context, in journals.EntryInput) (journals.JournalEntry, error)
	Update(ctx context.Context, in journals.UpdateInput) (journals.JournalEntry, error)
	Delete(ctx context.Context, in journals.DeleteInput) error
	Get(ctx context.Context, businessID, entryID uuid.UUID) (journals.JournalEntry, error)
	ListRecent(ctx context.Context, businessID uuid.UUID) ([]journals.EntrySummary, error)
}

type periodService interface {
	List(ctx context.Context, businessID uuid.UUID) ([]periods.ClosingPeriod, error)
	Close(ctx context.Context, in periods.CloseInput) (periods.ClosingPeriod, error)
	Reopen(ctx context.Context, in periods.ReopenInput) (periods.ClosingPeriod, error)
	LockStatusForRange(ctx context.Context, businessID uuid.UUID, start, end time.Time) (periods.LockStatus, error)
}

type accountService interface {
	GetBusiness(ctx context.Context, businessID uuid.UUID) (accounts.Business, error)
	UpdateSettings(ctx context.Context, in accounts.SettingsInput) (accounts.Business, error)
	ListAccounts(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]accounts.Account, error)
	ListOpeningBalances(ctx context.Context, businessID uuid.UUID) ([]accounts.OpeningBalanceRow, error)
	ReplaceOpeningBalances(ctx context.Context, in accounts.ReplaceBalancesInput) error
	CreateAccount(ctx context.Context, in accounts.CreateAccountInput) (accounts.Account, error)
	UpdateAccount(ctx context.Context, in accounts.UpdateAccountInput) (accounts.Account, error)
	DeactivateAccount(ctx context.Context, businessID, accountID, actorID uuid.UUID) error
	CreateBusiness(ctx context.Context, in accounts.CreateBusinessInput) (accounts.SeedResult, error)
	Seed(ctx context.Context, businessID, actorID uuid.UUID) (accounts.SeedResult, error)
	ListTaxCategories(ctx context.Context) ([]accounts.TaxCategory, error)
	UpdateTaxCategoryRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) (accounts.TaxCategory, error)
}

type reportService interface {
	Business(ctx context.Context, businessID uuid.UUID) (accounts.Business, error)
	TrialBalance(ctx context.Context, businessID uuid.UUID, month string) (reports.TrialBalance, error)
	BalanceSheet(ctx context.Context, businessID uuid.UUID, month string) (reports.BalanceSheet, error)
	IncomeStatement(ctx context.Context, businessID uuid.UUID, month string) (reports.IncomeStatement, error)
	GeneralLedger(ctx context.Context, businessID uuid.UUID) ([]reports.GeneralLedgerAccount, error)
	JournalDetail(ctx context.Context, businessID uuid.UUID) ([]reports.JournalDetailEntry, error)
	Dashboard(ctx context.Context, businessID uuid.UUID) (reports.Dashboard, error)
}

type idempotencyGuard interface {
	CheckAndInsert(ctx context.Context, scope, key string) error
	Delete(ctx context.Context, scope, key string) error
}

// IdempotencyHeader lets clients retry a journal submission safely.
const IdempotencyHeader = "Idempotency-Key"

// Services groups the ledger services exposed over HTTP.
type Services struct {
	Journals    journalService
	Periods     periodService
	Accounts    accountService
	Reports     reportService
	Idempotency idempotencyGuard
}

// Handler maps JSON requests onto the ledger services.
type Handler struct {
	logger    *slog.Logger
	svc       Services
	validate  *validator.Validate
	formatter reports.Formatter
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, svc Services, formatter reports.Formatter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, svc: svc, validate: validator.New(), formatter: formatter}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/businesses", h.createBusiness)

	r.Route("/tax-categories", func(r chi.Router) {
		r.Get("/", h.listTaxCategories)
		r.Patch("/{categoryID}", h.updateTaxCategory)
	})

	r.Route("/businesses/{businessID}", func(r chi.Router) {
		r.Get("/settings", h.getSettings)
		r.Patch("/settings", h.updateSettings)
		r.Post("/seed", h.seedBusiness)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.listAccounts)
			r.Post("/", h.createAccount)
			r.Patch("/{accountID}", h.updateAccount)
			r.Delete("/{accountID}", h.deactivateAccount)
		})

		r.Get("/opening-balances", h.listOpeningBalances)
		r.Put("/opening-balances", h.replaceOpeningBalances)

		r.Route("/journal-entries", func(r chi.Router) {
			r.Get("/", h.listEntries)
			r.Post("/", h.submitEntry)
			r.Get("/{entryID}", h.getEntry)
			r.Put("/{entryID}", h.updateEntry)
			r.Delete("/{entryID}", h.deleteEntry)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.listPeriods)
			r.Get("/lock-status", h.lockStatus)
			r.Post("/close", h.closePeriod)
			r.Post("/{periodID}/reopen", h.reopenPeriod)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", h.trialBalance)
			r.Get("/balance-sheet", h.balanceSheet)
			r.Get("/income-statement", h.incomeStatement)
			r.Get("/general-ledger", h.generalLedger)
			r.Get("/journal", h.journalDetail)
			r.Get("/dashboard", h.dashboard)
		})
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondError(w, h.logger, err)
}

func (h *Handler) pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, shared.Malformed("invalid %s", name)
	}
	return id, nil
}

// decode reads and validates a JSON body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return err
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func actor(r *http.Request) uuid.UUID {
	return platformshared.ActorFromContext(r.Context())
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	business, err := h.svc.Accounts.GetBusiness(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, business)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req settingsRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	business, err := h.svc.Accounts.UpdateSettings(r.Context(), req.toInput(businessID, actor(r)))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, business)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	list, err := h.svc.Accounts.ListAccounts(r.Context(), businessID, activeOnly)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req createAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	account, err := h.svc.Accounts.CreateAccount(r.Context(), req.toInput(businessID, actor(r)))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	accountID, err := h.pathID(r, "accountID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req updateAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	account, err := h.svc.Accounts.UpdateAccount(r.Context(), req.toInput(businessID, accountID, actor(r)))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	accountID, err := h.pathID(r, "accountID")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.svc.Accounts.DeactivateAccount(r.Context(), businessID, accountID, actor(r)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createBusiness(w http.ResponseWriter, r *http.Request) {
	var req createBusinessRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	result, err := h.svc.Accounts.CreateBusiness(r.Context(), req.toInput(actor(r)))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) seedBusiness(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	result, err := h.svc.Accounts.Seed(r.Context(), businessID, actor(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listTaxCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Accounts.ListTaxCategories(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []accounts.TaxCategory{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) updateTaxCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := h.pathID(r, "categoryID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req taxRateRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	category, err := h.svc.Accounts.UpdateTaxCategoryRate(r.Context(), categoryID, *req.Rate)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) listOpeningBalances(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.svc.Accounts.ListOpeningBalances(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) replaceOpeningBalances(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req balancesRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.svc.Accounts.ReplaceOpeningBalances(r.Context(), req.toInput(businessID, actor(r))); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.svc.Journals.ListRecent(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []journals.EntrySummary{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) submitEntry(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req entryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	release, err := h.claim(r, "journal.submit:"+businessID.String())
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.svc.Journals.Submit(r.Context(), req.toInput(businessID, actor(r)))
	if err != nil {
		release()
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// claim reserves the request's idempotency key. The returned func frees the
// key again so a failed submission can be retried with it.
func (h *Handler) claim(r *http.Request, scope string) (func(), error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" || h.svc.Idempotency == nil {
		return func() {}, nil
	}
	if err := h.svc.Idempotency.CheckAndInsert(r.Context(), scope, key); err != nil {
		if errors.Is(err, platformshared.ErrIdempotencyConflict) {
			return nil, &shared.ConflictError{Reason: shared.ReasonDuplicateRequest, Detail: "idempotency key already used"}
		}
		return nil, shared.Internal("claim idempotency key", err)
	}
	return func() {
		if err := h.svc.Idempotency.Delete(context.WithoutCancel(r.Context()), scope, key); err != nil {
			h.logger.Warn("release idempotency key", slog.String("scope", scope), slog.Any("error", err))
		}
	}, nil
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	entryID, err := h.pathID(r, "entryID")
	if err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.svc.Journals.Get(r.Context(), businessID, entryID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	entryID, err := h.pathID(r, "entryID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req entryRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	entry, err := h.svc.Journals.Update(r.Context(), journals.UpdateInput{
		EntryInput: req.toInput(businessID, actor(r)),
		EntryID:    entryID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	entryID, err := h.pathID(r, "entryID")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.svc.Journals.Delete(r.Context(), journals.DeleteInput{BusinessID: businessID, EntryID: entryID, ActorID: actor(r)}); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	list, err := h.svc.Periods.List(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []periods.ClosingPeriod{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) lockStatus(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	start, errStart := time.Parse(time.DateOnly, r.URL.Query().Get("start"))
	end, errEnd := time.Parse(time.DateOnly, r.URL.Query().Get("end"))
	if errStart != nil || errEnd != nil {
		h.fail(w, shared.Malformed("start and end must be YYYY-MM-DD"))
		return
	}
	status, err := h.svc.Periods.LockStatusForRange(r.Context(), businessID, start, end)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req closeRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	period, err := h.svc.Periods.Close(r.Context(), req.toInput(businessID, actor(r)))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	periodID, err := h.pathID(r, "periodID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req reopenRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.fail(w, err)
			return
		}
	}
	period, err := h.svc.Periods.Reopen(r.Context(), periods.ReopenInput{
		BusinessID: businessID,
		PeriodID:   periodID,
		ActorID:    actor(r),
		Notes:      req.Notes,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	business, err := h.svc.Reports.Business(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	tb, err := h.svc.Reports.TrialBalance(r.Context(), businessID, r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.NewTrialBalanceViewModel(business.Name, tb, h.formatter))
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	business, err := h.svc.Reports.Business(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	bs, err := h.svc.Reports.BalanceSheet(r.Context(), businessID, r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.NewBalanceSheetViewModel(business.Name, bs, h.formatter))
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	business, err := h.svc.Reports.Business(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	is, err := h.svc.Reports.IncomeStatement(r.Context(), businessID, r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.NewIncomeStatementViewModel(business.Name, is, h.formatter))
}

func (h *Handler) generalLedger(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	gl, err := h.svc.Reports.GeneralLedger(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, gl)
}

func (h *Handler) journalDetail(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	detail, err := h.svc.Reports.JournalDetail(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	businessID, err := h.pathID(r, "businessID")
	if err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.svc.Reports.Dashboard(r.Context(), businessID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports.NewDashboardViewModel(d, h.formatter))
}
