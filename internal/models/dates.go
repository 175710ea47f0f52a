package models

import (
	"fmt"
	"time"
)

// DateOf отбрасывает время суток, оставляя календарную дату в UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsOverdue задача просрочена, если срок строго раньше today и она не завершена
func (t *Task) IsOverdue(today time.Time) bool {
	if t.DueDate == nil || t.Status.IsTerminal() {
		return false
	}
	return DateOf(*t.DueDate).Before(DateOf(today))
}

// NeedsRollover задача переносится в бэклог, если она не завершена или просрочена
func (t *Task) NeedsRollover(today time.Time) bool {
	return !t.Status.IsTerminal() || t.IsOverdue(today)
}

// DateLayout формат календарной даты во входных данных API и файлах плана
const DateLayout = "2006-01-02"

// ParseDate разбирает дату в формате YYYY-MM-DD; пустая строка дает nil
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}
