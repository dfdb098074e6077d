package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bilancio/internal/core"
	"bilancio/internal/forms"
)

type txRow struct {
	ID       int64
	Title    string
	Amount   string
	Type     string
	Category string
	Created  string
}

type sumRow struct {
	Name  string
	Total string
}

type listPage struct {
	Flash        *Flash
	Username     string
	Rows         []txRow
	TypeSums     []sumRow
	CategorySums []sumRow
	MonthLabel   string
}

type txFormPage struct {
	Flash      *Flash
	Username   string
	Form       forms.TransactionForm
	Errors     forms.Errors
	Notice     string
	Action     string
	Heading    string
	Types      []core.TxType
	Categories []core.Category
}

type detailPage struct {
	Flash    *Flash
	Username string
	Tx       txRow
}

func toRow(tx core.Transaction) txRow {
	return txRow{
		ID:       tx.ID,
		Title:    tx.Title,
		Amount:   tx.Amount.String(),
		Type:     string(tx.Type),
		Category: string(tx.Category),
		Created:  tx.CreatedAt.Local().Format("02 Jan 2006 15:04"),
	}
}

// idParam extracts the transaction identifier from the route.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// handleTransactionList shows every transaction of the caller plus the
// current month's per-type and per-category sums.
func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	account := currentAccount(r)
	now := time.Now()

	transactions, err := s.repo.ListTransactions(r.Context(), account.ID)
	if err != nil {
		s.renderServerError(w, r, err)
		return
	}

	typeSums, err := s.repo.SumByType(r.Context(), account.ID, now.Year(), now.Month())
	if err != nil {
		s.renderServerError(w, r, err)
		return
	}

	categorySums, err := s.repo.SumByCategory(r.Context(), account.ID, now.Year(), now.Month())
	if err != nil {
		s.renderServerError(w, r, err)
		return
	}

	page := listPage{
		Flash:      popFlash(w, r),
		Username:   account.Username,
		MonthLabel: now.Format("January 2006"),
	}
	for _, tx := range transactions {
		page.Rows = append(page.Rows, toRow(tx))
	}
	for _, sum := range typeSums {
		page.TypeSums = append(page.TypeSums, sumRow{Name: string(sum.Type), Total: sum.Total.String()})
	}
	for _, sum := range categorySums {
		page.CategorySums = append(page.CategorySums, sumRow{Name: string(sum.Category), Total: sum.Total.String()})
	}

	s.render(w, r, http.StatusOK, "transaction_list.html", page)
}

func (s *Server) transactionFormPage(r *http.Request, form forms.TransactionForm, errs forms.Errors, action, heading, notice string) txFormPage {
	return txFormPage{
		Username:   currentAccount(r).Username,
		Form:       form,
		Errors:     errs,
		Notice:     notice,
		Action:     action,
		Heading:    heading,
		Types:      core.Types(),
		Categories: core.Categories(),
	}
}

func (s *Server) handleTransactionCreateForm(w http.ResponseWriter, r *http.Request) {
	page := s.transactionFormPage(r, forms.TransactionForm{}, forms.Errors{}, "/transactions/add/", "Add transaction", "")
	page.Flash = popFlash(w, r)
	s.render(w, r, http.StatusOK, "transaction_form.html", page)
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	account := currentAccount(r)
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		page := s.transactionFormPage(r, forms.TransactionForm{}, forms.Errors{}, "/transactions/add/", "Add transaction", "Invalid form submission")
		s.render(w, r, http.StatusBadRequest, "transaction_form.html", page)
		return
	}

	form := forms.ParseTransaction(r.PostForm)
	fieldErrs := form.Validate()
	if len(fieldErrs) > 0 {
		page := s.transactionFormPage(r, form, fieldErrs, "/transactions/add/", "Add transaction", "Failed to add transaction")
		s.render(w, r, http.StatusUnprocessableEntity, "transaction_form.html", page)
		return
	}

	_, err := s.txService.Create(r.Context(), account.ID, form.Title,
		core.Money{Cents: form.Cents()}, core.TxType(form.Type), core.Category(form.Category))
	if err != nil {
		s.renderServerError(w, r, err)
		return
	}

	setFlash(w, flashSuccess, "Transaction added successfully")
	http.Redirect(w, r, "/transactions/all/", http.StatusSeeOther)
}

// handleTransactionDetail renders a single transaction. Rows owned by other
// accounts are indistinguishable from missing ones.
func (s *Server) handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	account := currentAccount(r)
	id, ok := idParam(r)
	if !ok {
		s.renderNotFound(w, r)
		return
	}

	tx, err := s.repo.TransactionByID(r.Context(), account.ID, id)
	if err != nil {
		if isNotFound(err) {
			s.renderNotFound(w, r)
			return
		}
		s.renderServerError(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "transaction_detail.html", detailPage{
		Flash:    popFlash(w, r),
		Username: account.Username,
		Tx:       toRow(tx),
	})
}

func (s *Server) handleTransactionUpdateForm(w http.ResponseWriter, r *http.Request) {
	account := currentAccount(r)
	id, ok := idParam(r)
	if !ok {
		s.renderNotFound(w, r)
		return
	}

	tx, err := s.repo.TransactionByID(r.Context(), account.ID, id)
	if err != nil {
		if isNotFound(err) {
			s.renderNotFound(w, r)
			return
		}
		s.renderServerError(w, r, err)
		return
	}

	action := "/transactions/" + strconv.FormatInt(id, 10) + "/update/"
	page := s.transactionFormPage(r, forms.FromTransaction(tx), forms.Errors{}, action, "Edit transaction", "")
	page.Flash = popFlash(w, r)
	s.render(w, r, http.StatusOK, "transaction_form.html", page)
}

func (s *Server) handleTransactionUpdate(w http.ResponseWriter, r *http.Request) {
	account := currentAccount(r)
	id, ok := idParam(r)
	if !ok {
		s.renderNotFound(w, r)
		return
	}
	action := "/transactions/" + strconv.FormatInt(id, 10) + "/update/"

	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		page := s.transactionFormPage(r, forms.TransactionForm{}, forms.Errors{}, action, "Edit transaction", "Invalid form submission")
		s.render(w, r, http.StatusBadRequest, "transaction_form.html", page)
		return
	}

	form := forms.ParseTransaction(r.PostForm)
	fieldErrs := form.Validate()
	if len(fieldErrs) > 0 {
		page := s.transactionFormPage(r, form, fieldErrs, action, "Edit transaction", "Transaction update failed")
		s.render(w, r, http.StatusUnprocessableEntity, "transaction_form.html", page)
		return
	}

	err := s.txService.Update(r.Context(), account.ID, id, form.Title,
		core.Money{Cents: form.Cents()}, core.TxType(form.Type), core.Category(form.Category))
	if err != nil {
		if isNotFound(err) {
			s.renderNotFound(w, r)
			return
		}
		s.renderServerError(w, r, err)
		return
	}

	setFlash(w, flashSuccess, "Transaction updated successfully")
	http.Redirect(w, r, "/transactions/all/", http.StatusSeeOther)
}

// handleTransactionDelete removes the identified transaction. Deleting an
// identifier that no longer exists still redirects with the success notice.
func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request) {
	account := currentAccount(r)
	id, ok := idParam(r)
	if !ok {
		s.renderNotFound(w, r)
		return
	}

	if err := s.txService.Delete(r.Context(), account.ID, id); err != nil {
		s.renderServerError(w, r, err)
		return
	}

	setFlash(w, flashSuccess, "Transaction removed successfully")
	http.Redirect(w, r, "/transactions/all/", http.StatusFound)
}
