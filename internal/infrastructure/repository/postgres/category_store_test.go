package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCategoryStoreAssignUpsertsEveryProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	store := NewCategoryStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO category_labels").
		WithArgs("Hardware", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO product_categories").
		WithArgs("Widget", "Hardware", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO product_categories").
		WithArgs("Bolt", "Hardware", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Assign(context.Background(), []string{"Widget", "Bolt"}, "Hardware"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCategoryStoreLookupMissingProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	store := NewCategoryStore(db)

	mock.ExpectQuery("SELECT category FROM product_categories").
		WithArgs("Gadget").
		WillReturnRows(sqlmock.NewRows([]string{"category"}))

	category, ok, err := store.Lookup(context.Background(), "Gadget")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ok || category != "" {
		t.Fatalf("expected no mapping, got %q", category)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
