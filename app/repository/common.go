package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTimeValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// emptyAsNull keeps unique indexes on gateway-id columns from colliding on
// empty strings.
func emptyAsNull(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func stringFromNull(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func timePtrFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func serializeAddons(addons []entity.RegistrationAddon) (string, error) {
	if addons == nil {
		addons = []entity.RegistrationAddon{}
	}
	payload, err := json.Marshal(addons)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseAddons(raw string) ([]entity.RegistrationAddon, error) {
	if raw == "" {
		return []entity.RegistrationAddon{}, nil
	}
	var addons []entity.RegistrationAddon
	if err := json.Unmarshal([]byte(raw), &addons); err != nil {
		return nil, err
	}
	if addons == nil {
		addons = []entity.RegistrationAddon{}
	}
	return addons, nil
}
