package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/untibullet/sprint-rollover/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// encodeStrings сериализует упорядоченный список строк в JSON-массив для хранения в текстовой колонке
func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(raw), nil
}

// decodeStrings разбирает JSON-массив из текстовой колонки; пустое значение дает пустой список
func decodeStrings(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string list %q: %w", raw, err)
	}
	return values, nil
}

// dateArg приводит дату к календарному дню; nil сохраняется как NULL
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return models.DateOf(*t)
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOf(*t)
	return &d
}

func lineageKindArg(l *models.Lineage) any {
	if l == nil {
		return nil
	}
	return string(l.Kind)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
