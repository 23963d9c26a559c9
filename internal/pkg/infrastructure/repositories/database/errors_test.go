package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/matryer/is"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

func TestMapErrorNotFound(t *testing.T) {
	is := is.New(t)
	is.Equal(ErrNotFound, MapError(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound)))
	is.NoErr(MapError(nil))
}

func TestMapErrorPostgresCodes(t *testing.T) {
	is := is.New(t)

	err := MapError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_product_sku"})
	is.True(errors.Is(err, ErrUniqueViolation))
	is.True(errors.Is(err, ErrConstraintViolation))

	var ce *ConstraintError
	is.True(errors.As(err, &ce))
	is.Equal("idx_product_sku", ce.Constraint)

	is.True(errors.Is(MapError(&pgconn.PgError{Code: "23514"}), ErrCheckViolation))
	is.True(errors.Is(MapError(&pgconn.PgError{Code: "23503"}), ErrProtected))
	is.True(errors.Is(MapError(&pgconn.PgError{Code: "23001"}), ErrProtected))
	is.True(errors.Is(MapError(&pgconn.PgError{Code: "42P01"}), ErrRepositoryError))
}

func TestMapErrorSQLiteCodes(t *testing.T) {
	is := is.New(t)

	cases := map[sqlite3.ErrNoExtended]error{
		sqlite3.ErrConstraintUnique:     ErrUniqueViolation,
		sqlite3.ErrConstraintCheck:      ErrCheckViolation,
		sqlite3.ErrConstraintForeignKey: ErrProtected,
		sqlite3.ErrConstraintTrigger:    ErrProtected,
	}

	for code, kind := range cases {
		err := MapError(fmt.Errorf("delete: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: code}))
		is.True(errors.Is(err, kind))
		is.True(errors.Is(err, ErrConstraintViolation))
	}
}

func TestMapErrorUnknown(t *testing.T) {
	is := is.New(t)

	err := MapError(errors.New("connection reset"))
	is.True(errors.Is(err, ErrRepositoryError))
	is.True(!errors.Is(err, ErrConstraintViolation))
}

func TestConstraintErrorKindsAreDistinguishable(t *testing.T) {
	is := is.New(t)

	err := &ConstraintError{Constraint: "par_min_lte_max", Kind: ErrCheckViolation}
	is.True(errors.Is(err, ErrCheckViolation))
	is.True(!errors.Is(err, ErrUniqueViolation))
	is.Equal("constraint violation: check constraint violated (par_min_lte_max)", err.Error())
}

func TestAlertRuleWithMinAboveMaxIsRejected(t *testing.T) {
	is, db := setup(t)

	lo, hi := 100.0, 50.0
	err := MapError(db.Create(&AlertRule{Name: "High Temp", Severity: SeverityHigh, DefaultMinThreshold: &lo, DefaultMaxThreshold: &hi}).Error)
	is.True(errors.Is(err, ErrCheckViolation))

	var count int64
	is.NoErr(db.Model(&AlertRule{}).Count(&count).Error)
	is.Equal(int64(0), count)
}

func TestCheckConstraintHoldsBelowTheHooks(t *testing.T) {
	is, db := setup(t)

	rule := AlertRule{Name: "High Temp", Severity: SeverityHigh}
	is.NoErr(db.Create(&rule).Error)

	err := MapError(db.Exec("UPDATE alert_rule SET default_min_threshold = 100, default_max_threshold = 50 WHERE id = ?", rule.ID).Error)
	is.True(errors.Is(err, ErrCheckViolation))
}

func TestSecondLinkForSamePairIsRejected(t *testing.T) {
	is, db := setup(t)

	category := Category{Name: "Sensors"}
	is.NoErr(db.Create(&category).Error)
	product := Product{Name: "Thermometer", CategoryID: category.ID, SKU: "T-1"}
	is.NoErr(db.Omit("Category").Create(&product).Error)
	rule := AlertRule{Name: "High Temp", Severity: SeverityHigh}
	is.NoErr(db.Create(&rule).Error)

	is.NoErr(db.Omit("Product", "AlertRule").Create(&ProductAlertRule{ProductID: product.ID, AlertRuleID: rule.ID}).Error)

	err := MapError(db.Omit("Product", "AlertRule").Create(&ProductAlertRule{ProductID: product.ID, AlertRuleID: rule.ID}).Error)
	is.True(errors.Is(err, ErrUniqueViolation))
}

func TestSoftDeleteIsNotFilteredImplicitly(t *testing.T) {
	is, db := setup(t)

	organization := Organization{Name: "EcoCorp"}
	is.NoErr(db.Create(&organization).Error)
	is.NoErr(SoftDelete(context.Background(), db, &Organization{}, organization.ID))

	fromDb := Organization{}
	is.NoErr(db.First(&fromDb, organization.ID).Error)
	is.True(fromDb.IsDeleted())
	is.True(!fromDb.UpdatedAt.Before(fromDb.CreatedAt))
}

func TestCreatedAtIsImmutable(t *testing.T) {
	is, db := setup(t)

	organization := Organization{Name: "EcoCorp"}
	is.NoErr(db.Create(&organization).Error)
	created := organization.CreatedAt

	organization.Name = "EcoCorp AB"
	organization.CreatedAt = created.AddDate(-1, 0, 0)
	is.NoErr(db.Save(&organization).Error)

	fromDb := Organization{}
	is.NoErr(db.First(&fromDb, organization.ID).Error)
	is.Equal("EcoCorp AB", fromDb.Name)
	is.Equal(created.Unix(), fromDb.CreatedAt.Unix())
}

func setup(t *testing.T) (*is.I, *gorm.DB) {
	is := is.New(t)

	db, err := Open(NewSQLiteConnector(context.Background()))
	is.NoErr(err)

	return is, db
}
