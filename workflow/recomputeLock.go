package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireUserRecomputeLock serializes snapshot rebuilds per user across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that will do the snapshot transaction.
func AcquireUserRecomputeLock(tx *gorm.DB, userId string) error {
	lockName := fmt.Sprintf("recompute:%s", userId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire recompute lock for user_id=%s", userId)
	}
	return nil
}

func ReleaseUserRecomputeLock(tx *gorm.DB, userId string) {
	lockName := fmt.Sprintf("recompute:%s", userId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
