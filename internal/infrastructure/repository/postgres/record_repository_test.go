package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

var documentRowColumns = []string{
	"id", "filename", "filetype", "size_bytes", "checksum", "storage_key", "uploaded_at",
	"document_date", "page_count", "root_tag", "supplier_id", "invoice_number", "invoice_total",
}

var lineItemRowColumns = []string{
	"document_id", "position", "product", "quantity", "unit_price", "line_total", "document_date",
}

func newRepoWithMock(t *testing.T) (*RecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RecordRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT d.id, d.filename").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(documentRowColumns))
	mock.ExpectCommit()

	_, err := repo.GetByID(context.Background(), 7)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryAttachesLineItemsInPositionOrder(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	uploaded := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	dated := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT d.id, d.filename").
		WithArgs("%A-1%", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow(int64(1), "a.pdf", "page", int64(120), "abc", "k1", uploaded, dated, int64(2), nil, int64(4), "A-100", "25.50").
			AddRow(int64(2), "b.xml", "markup", int64(80), "def", "k2", uploaded, nil, nil, "Factura", nil, "A-101", nil))
	mock.ExpectQuery("SELECT li.document_id").
		WithArgs("%A-1%", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(lineItemRowColumns).
			AddRow(int64(1), int64(0), "Widget", "2", "10.00", "20.00", dated).
			AddRow(int64(1), int64(1), "Bolt", "1", "5.5", "5.5", dated))
	mock.ExpectCommit()

	from := domain.Month{Year: 2024, Month: time.January}
	docs, err := repo.Query(context.Background(), domain.DocumentFilter{InvoiceContains: "A-1", From: &from})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	first := docs[0]
	if first.PageCount == nil || *first.PageCount != 2 {
		t.Fatalf("unexpected page count: %v", first.PageCount)
	}
	if first.SupplierID == nil || *first.SupplierID != 4 {
		t.Fatalf("unexpected supplier id: %v", first.SupplierID)
	}
	if first.InvoiceTotal == nil || !first.InvoiceTotal.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected invoice total: %v", first.InvoiceTotal)
	}
	if len(first.LineItems) != 2 || first.LineItems[0].Product != "Widget" || first.LineItems[1].Product != "Bolt" {
		t.Fatalf("unexpected line items: %+v", first.LineItems)
	}
	if !first.LineItems[0].LineTotal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected line total: %s", first.LineItems[0].LineTotal)
	}

	second := docs[1]
	if second.DocumentDate != nil || second.InvoiceTotal != nil || second.SupplierID != nil {
		t.Fatalf("expected null columns to stay nil: %+v", second)
	}
	if second.RootTag == nil || *second.RootTag != "Factura" {
		t.Fatalf("unexpected root tag: %v", second.RootTag)
	}
	if len(second.LineItems) != 0 {
		t.Fatalf("expected no line items, got %d", len(second.LineItems))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertCreatesSupplierAndLineItems(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(supplierLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM suppliers WHERE lower(tax_id)")).
		WithArgs("76.123.456-7").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tax_id FROM suppliers WHERE lower(name)")).
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tax_id"}))
	mock.ExpectQuery("INSERT INTO suppliers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("INSERT INTO line_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	taxID := "76.123.456-7"
	doc := &domain.Document{
		Filename:   "a.xml",
		FileType:   domain.FileTypeMarkup,
		StorageKey: "k",
		UploadedAt: time.Now(),
		LineItems: []domain.LineItem{
			{Product: "Widget", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(3), LineTotal: decimal.NewFromInt(3)},
		},
	}
	id, err := repo.Insert(context.Background(), doc, &domain.Supplier{Name: "Acme", TaxID: &taxID})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id != 11 || doc.ID != 11 {
		t.Fatalf("expected id 11, got %d / %d", id, doc.ID)
	}
	if doc.SupplierID == nil || *doc.SupplierID != 3 {
		t.Fatalf("unexpected supplier id: %v", doc.SupplierID)
	}
	if doc.LineItems[0].DocumentID != 11 {
		t.Fatalf("line item not linked: %+v", doc.LineItems[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertAdoptsTaxIDOnNameMatch(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM suppliers WHERE lower(tax_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tax_id FROM suppliers WHERE lower(name)")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tax_id"}).AddRow(int64(2), nil))
	mock.ExpectExec("UPDATE suppliers SET tax_id").
		WithArgs(int64(2), "B123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectCommit()

	taxID := "B123"
	doc := &domain.Document{Filename: "x.pdf", FileType: domain.FileTypePage, StorageKey: "k"}
	if _, err := repo.Insert(context.Background(), doc, &domain.Supplier{Name: "acme", TaxID: &taxID}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if doc.SupplierID == nil || *doc.SupplierID != 2 {
		t.Fatalf("expected existing supplier 2, got %v", doc.SupplierID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertDoesNotMergeConflictingTaxIDsByName(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM suppliers WHERE lower(tax_id)")).
		WithArgs("99.222.222-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(name) = lower($1) AND coalesce(tax_id, '') = ''")).
		WithArgs("Comercial Sur").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tax_id"}))
	mock.ExpectQuery("INSERT INTO suppliers").
		WithArgs("Comercial Sur", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectCommit()

	taxID := "99.222.222-2"
	doc := &domain.Document{Filename: "b.xml", FileType: domain.FileTypeMarkup, StorageKey: "k"}
	if _, err := repo.Insert(context.Background(), doc, &domain.Supplier{Name: "Comercial Sur", TaxID: &taxID}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if doc.SupplierID == nil || *doc.SupplierID != 8 {
		t.Fatalf("expected new supplier 8, got %v", doc.SupplierID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertWithoutTaxIDMergesByNameOnly(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tax_id FROM suppliers WHERE lower(name) = lower($1) ORDER BY id LIMIT 1")).
		WithArgs("Comercial Sur").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tax_id"}).AddRow(int64(4), "76.111.111-1"))
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(22)))
	mock.ExpectCommit()

	doc := &domain.Document{Filename: "c.pdf", FileType: domain.FileTypePage, StorageKey: "k"}
	if _, err := repo.Insert(context.Background(), doc, &domain.Supplier{Name: "Comercial Sur"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if doc.SupplierID == nil || *doc.SupplierID != 4 {
		t.Fatalf("expected existing supplier 4, got %v", doc.SupplierID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertRejectsUnknownFileType(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	_, err := repo.Insert(context.Background(), &domain.Document{FileType: domain.FileTypeUnknown}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("DELETE FROM documents WHERE id").
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Delete(context.Background(), 9)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteAllReturnsStorageKeys(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("DELETE FROM documents RETURNING storage_key").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("k1").AddRow("k2"))

	keys, err := repo.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFilterClause(t *testing.T) {
	from := domain.Month{Year: 2024, Month: time.February}
	to := domain.Month{Year: 2024, Month: time.December}
	where, args := filterClause(domain.DocumentFilter{
		IDs:             []int64{1, 2},
		Types:           []domain.FileType{domain.FileTypePage},
		InvoiceContains: "50%_",
		From:            &from,
		To:              &to,
	})

	want := `d.id = ANY($1) AND d.filetype = ANY($2) AND d.invoice_number ILIKE $3 ESCAPE '\' AND d.document_date >= $4 AND d.document_date < $5`
	if where != want {
		t.Fatalf("unexpected clause:\n got %s\nwant %s", where, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[2] != `%50\%\_%` {
		t.Fatalf("unexpected like pattern: %v", args[2])
	}
	if end := args[4].(time.Time); !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected exclusive upper bound: %v", end)
	}

	if where, args := filterClause(domain.DocumentFilter{}); where != "TRUE" || len(args) != 0 {
		t.Fatalf("empty filter should match everything, got %q %v", where, args)
	}
}
