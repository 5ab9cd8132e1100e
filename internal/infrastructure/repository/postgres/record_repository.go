package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

const documentColumns = `d.id, d.filename, d.filetype, d.size_bytes, d.checksum, d.storage_key, d.uploaded_at,
	d.document_date, d.page_count, d.root_tag, d.supplier_id, d.invoice_number, d.invoice_total`

const lineItemColumns = `li.document_id, li.position, li.product, li.quantity, li.unit_price, li.line_total, li.document_date`

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Insert(ctx context.Context, doc *domain.Document, supplier *domain.Supplier) (int64, error) {
	if doc == nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "insert document", errors.New("document is nil"))
	}
	if !doc.FileType.Valid() {
		return 0, domain.WrapError(domain.ErrInvalidInput, "insert document", fmt.Errorf("filetype %q", doc.FileType))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "insert document", fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var supplierID *int64
	if supplier != nil {
		id, err := upsertSupplier(ctx, tx, *supplier)
		if err != nil {
			return 0, domain.WrapError(domain.ErrTemporary, "insert document", err)
		}
		supplierID = &id
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO documents (
	filename, filetype, size_bytes, checksum, storage_key, uploaded_at,
	document_date, page_count, root_tag, supplier_id, invoice_number, invoice_total
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id
`,
		doc.Filename,
		string(doc.FileType),
		doc.SizeBytes,
		doc.Checksum,
		doc.StorageKey,
		doc.UploadedAt.UTC(),
		nullTime(doc.DocumentDate),
		nullInt(doc.PageCount),
		nullString(doc.RootTag),
		nullInt64(supplierID),
		nullString(doc.InvoiceNumber),
		nullDecimal(doc.InvoiceTotal),
	).Scan(&id)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "insert document", err)
	}

	for i, item := range doc.LineItems {
		_, err := tx.ExecContext(ctx, `
INSERT INTO line_items (document_id, position, product, quantity, unit_price, line_total, document_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, id, i, item.Product, item.Quantity, item.UnitPrice, item.LineTotal, nullTime(doc.DocumentDate))
		if err != nil {
			return 0, domain.WrapError(domain.ErrTemporary, "insert line item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "insert document", fmt.Errorf("commit: %w", err))
	}

	doc.ID = id
	doc.SupplierID = supplierID
	for i := range doc.LineItems {
		doc.LineItems[i].DocumentID = id
		doc.LineItems[i].Position = i
	}
	return id, nil
}

// upsertSupplier matches by tax id, then by name, and creates the supplier otherwise.
// A name match without a stored tax id adopts the candidate's; two different
// tax ids never merge.
func upsertSupplier(ctx context.Context, tx *sql.Tx, candidate domain.Supplier) (int64, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, supplierLockKey); err != nil {
		return 0, fmt.Errorf("acquire supplier lock: %w", err)
	}

	var id int64
	candidateHasTaxID := candidate.TaxID != nil && strings.TrimSpace(*candidate.TaxID) != ""
	if candidateHasTaxID {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM suppliers WHERE lower(tax_id) = lower($1) ORDER BY id LIMIT 1`,
			*candidate.TaxID,
		).Scan(&id)
		switch {
		case err == nil:
			return id, nil
		case !errors.Is(err, sql.ErrNoRows):
			return 0, fmt.Errorf("select supplier by tax id: %w", err)
		}
	}

	name := strings.TrimSpace(candidate.Name)
	if name != "" {
		query := `SELECT id, tax_id FROM suppliers WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`
		if candidateHasTaxID {
			// a different tax id on the same name is a different legal entity
			query = `SELECT id, tax_id FROM suppliers WHERE lower(name) = lower($1) AND coalesce(tax_id, '') = '' ORDER BY id LIMIT 1`
		}
		var taxID sql.NullString
		err := tx.QueryRowContext(ctx, query, name).Scan(&id, &taxID)
		switch {
		case err == nil:
			if candidateHasTaxID {
				if _, err := tx.ExecContext(ctx, `UPDATE suppliers SET tax_id = $2 WHERE id = $1`, id, *candidate.TaxID); err != nil {
					return 0, fmt.Errorf("update supplier tax id: %w", err)
				}
			}
			return id, nil
		case !errors.Is(err, sql.ErrNoRows):
			return 0, fmt.Errorf("select supplier by name: %w", err)
		}
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO suppliers (name, tax_id) VALUES ($1, $2) RETURNING id`,
		name, nullString(candidate.TaxID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert supplier: %w", err)
	}
	return id, nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	docs, err := r.query(ctx, "get document", `d.id = $1`, []any{id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%d", id))
	}
	return &docs[0], nil
}

func (r *RecordRepository) Query(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	where, args := filterClause(filter)
	return r.query(ctx, "query documents", where, args)
}

// query loads documents and their line items inside one repeatable-read
// transaction so both reads see the same snapshot.
func (r *RecordRepository) query(ctx context.Context, op, where string, args []any) ([]domain.Document, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents d WHERE `+where+` ORDER BY d.id`, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, err)
	}
	if len(docs) == 0 {
		return docs, tx.Commit()
	}

	index := make(map[int64]int, len(docs))
	for i, doc := range docs {
		index[doc.ID] = i
	}

	itemRows, err := tx.QueryContext(ctx, `SELECT `+lineItemColumns+`
FROM line_items li JOIN documents d ON d.id = li.document_id
WHERE `+where+`
ORDER BY li.document_id, li.position`, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			item domain.LineItem
			date sql.NullTime
		)
		if err := itemRows.Scan(&item.DocumentID, &item.Position, &item.Product, &item.Quantity, &item.UnitPrice, &item.LineTotal, &date); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("scan line item: %w", err))
		}
		item.DocumentDate = timePtr(date)
		if i, ok := index[item.DocumentID]; ok {
			docs[i].LineItems = append(docs[i].LineItems, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("commit: %w", err))
	}
	return docs, nil
}

func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var (
			doc           domain.Document
			fileType      string
			documentDate  sql.NullTime
			pageCount     sql.NullInt64
			rootTag       sql.NullString
			supplierID    sql.NullInt64
			invoiceNumber sql.NullString
			invoiceTotal  decimal.NullDecimal
		)
		if err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&fileType,
			&doc.SizeBytes,
			&doc.Checksum,
			&doc.StorageKey,
			&doc.UploadedAt,
			&documentDate,
			&pageCount,
			&rootTag,
			&supplierID,
			&invoiceNumber,
			&invoiceTotal,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.FileType = domain.FileType(fileType)
		doc.UploadedAt = doc.UploadedAt.UTC()
		doc.DocumentDate = timePtr(documentDate)
		doc.PageCount = intPtr(pageCount)
		doc.RootTag = stringPtr(rootTag)
		doc.SupplierID = int64Ptr(supplierID)
		doc.InvoiceNumber = stringPtr(invoiceNumber)
		doc.InvoiceTotal = decimalPtr(invoiceTotal)
		doc.LineItems = []domain.LineItem{}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// filterClause renders the filter as a WHERE expression over the documents alias d.
func filterClause(filter domain.DocumentFilter) (string, []any) {
	conds := make([]string, 0, 6)
	args := make([]any, 0, 6)
	add := func(expr string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if len(filter.IDs) > 0 {
		add("d.id = ANY($%d)", filter.IDs)
	}
	if len(filter.SupplierIDs) > 0 {
		add("d.supplier_id = ANY($%d)", filter.SupplierIDs)
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		add("d.filetype = ANY($%d)", types)
	}
	if needle := strings.TrimSpace(filter.InvoiceContains); needle != "" {
		add(`d.invoice_number ILIKE $%d ESCAPE '\'`, "%"+escapeLike(needle)+"%")
	}
	if filter.From != nil {
		add("d.document_date >= $%d", filter.From.Start())
	}
	if filter.To != nil {
		add("d.document_date < $%d", filter.To.Next().Start())
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *RecordRepository) Delete(ctx context.Context, id int64) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx, `DELETE FROM documents WHERE id = $1 RETURNING storage_key`, id).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%d", id))
		}
		return "", domain.WrapError(domain.ErrTemporary, "delete document", err)
	}
	return key, nil
}

func (r *RecordRepository) DeleteAll(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM documents RETURNING storage_key`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "delete all documents", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "delete all documents", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "delete all documents", err)
	}
	return keys, nil
}

func (r *RecordRepository) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, tax_id FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list suppliers", err)
	}
	defer rows.Close()

	out := make([]domain.Supplier, 0)
	for rows.Next() {
		var (
			s     domain.Supplier
			taxID sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &taxID); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "list suppliers", err)
		}
		s.TaxID = stringPtr(taxID)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list suppliers", err)
	}
	return out, nil
}
