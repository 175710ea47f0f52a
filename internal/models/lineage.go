package models

// LineageKind различает, откуда история ведет свое происхождение
type LineageKind string

const (
	// LineageRollover история склонирована из бэклога, у которого известна исходная история
	LineageRollover LineageKind = "ROLLOVER"
	// LineageSelfOrigin исходная история неизвестна, началом цепочки считается сама запись бэклога
	LineageSelfOrigin LineageKind = "SELF_ORIGIN"
)

func (k LineageKind) IsValid() bool {
	return k == LineageRollover || k == LineageSelfOrigin
}

// Lineage указатель на предыдущее звено цепочки происхождения истории
type Lineage struct {
	Kind     LineageKind `json:"kind"`
	OriginID string      `json:"origin_id"`
}

func RolloverLineage(originalStoryID string) Lineage {
	return Lineage{Kind: LineageRollover, OriginID: originalStoryID}
}

func SelfOriginLineage(backlogStoryID string) Lineage {
	return Lineage{Kind: LineageSelfOrigin, OriginID: backlogStoryID}
}

// LineageOf вычисляет происхождение клона: исходная история, если она известна,
// иначе сама запись бэклога. Результат никогда не бывает пустым.
func LineageOf(bs *BacklogStory) Lineage {
	if bs.OriginalStoryID != nil && *bs.OriginalStoryID != "" {
		return RolloverLineage(*bs.OriginalStoryID)
	}
	return SelfOriginLineage(bs.BacklogStoryID)
}

// StoryLineage цепочка историй от текущей к самой ранней известной
type StoryLineage struct {
	StoryID       string   `json:"story_id"`
	Chain         []string `json:"chain"`
	RolloverCount int      `json:"rollover_count"`
	// RootBacklogStoryID заполнен, если цепочка заканчивается записью бэклога без исходной истории
	RootBacklogStoryID string `json:"root_backlog_story_id,omitempty"`
}
