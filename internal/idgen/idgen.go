// Package idgen выдает строковые идентификаторы сущностей.
//
// Каждый идентификатор начинается с четырехсимвольного префикса вида сущности.
// Для справочных сущностей (проект, спринт, эпик, релиз) за префиксом следует
// номер из последовательности в хранилище, дополненный нулями. Для остальных
// сущностей используется случайный UUID без дефисов.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrUnknownKind = errors.New("unknown id kind")

// Kind префикс вида сущности
type Kind string

// Справочные виды
const (
	KindProject Kind = "PROJ"
	KindSprint  Kind = "SPNT"
	KindEpic    Kind = "EPIC"
	KindRelease Kind = "RELS"
)

// Транзакционные виды
const (
	KindStory          Kind = "STRY"
	KindTask           Kind = "TASK"
	KindSubtask        Kind = "SUBT"
	KindBacklogStory   Kind = "BSTR"
	KindBacklogTask    Kind = "BTSK"
	KindBacklogSubtask Kind = "BSUB"
)

// counterWidth минимальная ширина номера справочной сущности (SPNT001)
const counterWidth = 3

// IsMaster сообщает, нумеруется ли вид последовательностью
func (k Kind) IsMaster() bool {
	switch k {
	case KindProject, KindSprint, KindEpic, KindRelease:
		return true
	}
	return false
}

func (k Kind) IsValid() bool {
	switch k {
	case KindStory, KindTask, KindSubtask, KindBacklogStory, KindBacklogTask, KindBacklogSubtask:
		return true
	}
	return k.IsMaster()
}

// Sequencer выдает следующее значение счетчика для вида сущности.
// Значения строго возрастают и не повторяются.
type Sequencer interface {
	NextSequence(ctx context.Context, kind string) (int64, error)
}

// Generator выдает идентификаторы
type Generator struct {
	seq    Sequencer
	random func() string
}

// New создает генератор поверх последовательностей хранилища
func New(seq Sequencer) *Generator {
	return &Generator{
		seq:    seq,
		random: randomSuffix,
	}
}

// Next возвращает ранее не выданный идентификатор для вида kind.
// Ошибка возможна только для справочных видов, когда недоступно хранилище.
func (g *Generator) Next(ctx context.Context, kind Kind) (string, error) {
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if !kind.IsMaster() {
		return string(kind) + g.random(), nil
	}

	n, err := g.seq.NextSequence(ctx, string(kind))
	if err != nil {
		return "", fmt.Errorf("failed to get next %s sequence: %w", kind, err)
	}
	return fmt.Sprintf("%s%0*d", kind, counterWidth, n), nil
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
