package dao

import (
	"errors"

	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/tables"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetScrollByPointer loads one cached reconstruction by canonical pointer
// string, with the body already decompressed. A missing row comes back
// with a zero Id, not an error.
func (d *DB) GetScrollByPointer(pointer string) (cache tables.ScrollCache, err error) {
	err = d.Where("pointer = ?", pointer).First(&cache).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = nil
	}
	if err != nil || cache.Id == 0 {
		return
	}
	cache.Body, err = decompressBody(cache.Body)
	return
}

// SaveScrollResult upserts the reconstruction outcome for a pointer.
// Content is immutable, so a conflict rewrite stores the same bytes.
func (d *DB) SaveScrollResult(pointer string, res *scroll.Result) error {
	row := &tables.ScrollCache{
		Pointer:       pointer,
		ContentType:   res.ContentType.String(),
		SHA256:        res.SHA256,
		Verification:  string(res.Verification),
		FragmentCount: res.FragmentCount,
		SizeBytes:     res.SizeBytes,
		Body:          compressBody(res.Bytes),
	}
	return d.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pointer"}},
		UpdateAll: true,
	}).Create(row).Error
}

// CachedResult rebuilds the engine's result contract from a cached row.
func CachedResult(cache *tables.ScrollCache) *scroll.Result {
	return &scroll.Result{
		Bytes:         cache.Body,
		ContentType:   constants.ContentType(cache.ContentType),
		SizeBytes:     cache.SizeBytes,
		SHA256:        cache.SHA256,
		Verification:  scroll.VerificationStatus(cache.Verification),
		FragmentCount: cache.FragmentCount,
	}
}

// ScrollStats returns the cached scroll count and the summed decompressed
// sizes.
func (d *DB) ScrollStats() (count int64, storedBytes uint64, err error) {
	if err = d.Model(&tables.ScrollCache{}).Count(&count).Error; err != nil {
		return
	}
	err = d.Model(&tables.ScrollCache{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&storedBytes).Error
	return
}

// VerificationFailures counts cached scrolls whose hash check failed.
func (d *DB) VerificationFailures() (count int64, err error) {
	err = d.Model(&tables.ScrollCache{}).
		Where("verification = ?", string(scroll.VerificationFailed)).
		Count(&count).Error
	return
}
