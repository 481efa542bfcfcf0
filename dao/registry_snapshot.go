package dao

import (
	"encoding/json"
	"errors"

	"github.com/scrollkeep/scrollkeep/scroll/log"
	"github.com/scrollkeep/scrollkeep/scroll/registry"
	"github.com/scrollkeep/scrollkeep/tables"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoadSnapshot implements registry.SnapshotCache over the snapshot table.
// Any failure degrades to a miss; the resolver just refetches the list.
func (d *DB) LoadSnapshot(identity string) (*registry.List, bool) {
	var row tables.RegistrySnapshot
	err := d.Where("identity = ?", identity).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		log.Srv.Warnf("dao: snapshot %s load failed: %v", identity, err)
		return nil, false
	}
	body, err := decompressBody(row.Body)
	if err != nil {
		log.Srv.Warnf("dao: snapshot %s body corrupt: %v", identity, err)
		return nil, false
	}
	var list registry.List
	if err := json.Unmarshal(body, &list); err != nil {
		log.Srv.Warnf("dao: snapshot %s json corrupt: %v", identity, err)
		return nil, false
	}
	return &list, true
}

// StoreSnapshot implements registry.SnapshotCache. Snapshots are
// immutable, so a conflicting identity is left as it is.
func (d *DB) StoreSnapshot(identity string, list *registry.List) {
	body, err := json.Marshal(list)
	if err != nil {
		log.Srv.Warnf("dao: snapshot %s marshal failed: %v", identity, err)
		return
	}
	row := &tables.RegistrySnapshot{
		Identity:   identity,
		EntryCount: len(list.Entries),
		Body:       compressBody(body),
	}
	err = d.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		log.Srv.Warnf("dao: snapshot %s store failed: %v", identity, err)
	}
}
