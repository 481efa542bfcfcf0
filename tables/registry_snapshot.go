package tables

import (
	"time"
)

// RegistrySnapshot is one resolved registry list pinned by the identity
// hash of the head that referenced it. Heads are append-only and a head's
// identity fixes its list, so snapshots are immutable once written.
type RegistrySnapshot struct {
	Id         uint64    `gorm:"column:id;primary_key;AUTO_INCREMENT;NOT NULL"`
	Identity   string    `gorm:"column:identity;type:varchar(64);uniqueIndex:uniq_identity;default:'';NOT NULL"`
	EntryCount int       `gorm:"column:entry_count;type:int unsigned;default:0;NOT NULL"`
	Body       []byte    `gorm:"column:body;type:longblob"` // zstd-compressed list JSON
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP;NOT NULL"`
}

func (r *RegistrySnapshot) TableName() string {
	return "registry_snapshot"
}
