package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/services"
	"caja/internal/storage"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	gw, err := storage.Open(filepath.Join(dir, "caja.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	opt := services.WithLogger(log.Discard())
	sessions := services.NewSessionService(gw, opt)
	categories := services.NewCategoryService(gw, opt)
	return &Dispatcher{
		Sessions:   sessions,
		Ledger:     services.NewLedgerService(gw, sessions, categories, opt),
		Categories: categories,
		Summary:    services.NewSummaryService(gw, sessions, opt),
		Backups:    services.NewBackupService(gw, filepath.Join(dir, "backups"), opt),
		Currency:   "USD",
		Logger:     log.Discard(),
	}
}

func TestLocalize(t *testing.T) {
	insufficient := core.E(core.KindInsufficientFunds, "create_transaction", core.CodeInsufficientFunds, "too much")
	insufficient.Balance = core.Cents(15000)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"by code", core.E(core.KindConflict, "create_session", core.CodeActiveSessionExists, ""),
			"Ya existe una sesión activa. Debe cerrar la sesión actual antes de abrir una nueva."},
		{"wrapped", fmt.Errorf("handler: %w", core.E(core.KindState, "close_session", core.CodeSessionClosed, "")),
			"La sesión ya está cerrada"},
		{"insufficient funds with balance", insufficient, "Saldo insuficiente. Balance actual: $150.00"},
		{"storage hides details", core.StorageError("get_session", errors.New("disk I/O error")),
			"Error de almacenamiento. Intente nuevamente."},
		{"kind fallback", core.E(core.KindNotFound, "x", "", ""), "El registro solicitado no existe"},
		{"plain error", errors.New("boom"), "Error inesperado"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Localize(tt.err, "USD"); got != tt.want {
				t.Errorf("Localize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatcher_Envelope(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.GetActiveSession(ctx)
	if !resp.Success || resp.Data != nil {
		t.Errorf("GetActiveSession() with none = %+v", resp)
	}

	resp = d.CreateSession(ctx, CreateSessionRequest{OperatorName: "Ana", OpeningAmount: core.Cents(10000)})
	if !resp.Success {
		t.Fatalf("CreateSession() = %+v", resp)
	}
	session := resp.Data.(core.Session)

	resp = d.CreateSession(ctx, CreateSessionRequest{OperatorName: "Luis"})
	if resp.Success || resp.ErrorKind != "conflict_error" || !strings.Contains(resp.Error, "sesión activa") {
		t.Errorf("second CreateSession() = %+v", resp)
	}

	resp = d.CreateTransaction(ctx, core.NewTransaction{SessionID: session.ID, Type: core.Expense, Amount: core.Cents(20000), Concept: "Compra"})
	if resp.Success || resp.Error != "Saldo insuficiente. Balance actual: $100.00" {
		t.Errorf("overdraft = %+v", resp)
	}

	resp = d.HasActiveSession(ctx)
	if !resp.Success || resp.Data != true {
		t.Errorf("HasActiveSession() = %+v", resp)
	}

	body, err := json.Marshal(d.GetTransactionByID(ctx, 77))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"success":false,"error":"Transacción no encontrada","error_kind":"not_found_error"}`
	if string(body) != want {
		t.Errorf("envelope JSON = %s, want %s", body, want)
	}
}

func TestGetTransactionsRequest_Filter(t *testing.T) {
	sid := int64(4)
	f, err := GetTransactionsRequest{
		SessionID:       &sid,
		TransactionType: " Income ",
		StartDate:       "2024-01-01",
		EndDate:         "2024-01-31",
		Limit:           20,
	}.Filter()
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if f.Type != core.Income || f.StartDate.String() != "2024-01-01" || f.EndDate.String() != "2024-01-31" || *f.SessionID != 4 {
		t.Errorf("Filter() = %+v", f)
	}

	if _, err := (GetTransactionsRequest{StartDate: "01/02/2024"}).Filter(); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad date error = %v", err)
	}
	if _, err := (GetTransactionsRequest{TransactionType: "refund"}).Filter(); !errors.Is(err, core.ErrValidation) {
		t.Errorf("bad type error = %v", err)
	}
}

func TestDispatcher_Categories(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.GetCategoriesByType(ctx, "expense")
	if !resp.Success || len(resp.Data.([]core.Category)) != 6 {
		t.Errorf("GetCategoriesByType() = %+v", resp)
	}
	resp = d.GetCategoriesByType(ctx, "gift")
	if resp.Success || resp.ErrorKind != "validation_error" {
		t.Errorf("GetCategoriesByType(gift) = %+v", resp)
	}
	resp = d.GetAllCategories(ctx)
	if !resp.Success || len(resp.Data.([]core.Category)) != 10 {
		t.Errorf("GetAllCategories() = %+v", resp)
	}
}
