package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SplitEntry is one line of a normalized split group as persisted on a
// content record. Wallet is either a concrete address or a pending marker.
type SplitEntry struct {
	Wallet     string `json:"wallet"`
	Percentage int    `json:"percentage"`
	Name       string `json:"name,omitempty"`
}

// Content is the catalog record the ledger core needs: an ID, the uploader,
// and the two normalized split groups. The full catalog (titles, media,
// remix lineage) lives outside this core.
type Content struct {
	ContentID         string         `gorm:"column:content_id;primaryKey" json:"content_id"`
	UploaderPersonaID uuid.UUID      `gorm:"column:uploader_persona_id;type:uuid;not null;index" json:"uploader_persona_id"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	CompositionSplits datatypes.JSON `gorm:"column:composition_splits" json:"composition_splits"`
	ProductionSplits  datatypes.JSON `gorm:"column:production_splits" json:"production_splits"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func (Content) TableName() string {
	return "Contents"
}

// DecodeSplits unmarshals a split group column; a null column is an empty group.
func DecodeSplits(col datatypes.JSON) ([]SplitEntry, error) {
	if len(col) == 0 {
		return nil, nil
	}
	var entries []SplitEntry
	if err := json.Unmarshal(col, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EncodeSplits marshals a split group for storage.
func EncodeSplits(entries []SplitEntry) (datatypes.JSON, error) {
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
