package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmindustry/forge_backend/config"
	"gorm.io/gorm"
)

var ErrTypeNotFound = errors.New("type not found")

const typeNameCacheTTL = 24 * time.Hour

// DBTypeResolver resolves names from the synced inv_types table, with a
// redis cache in front. Type names are effectively static, hence the long TTL.
type DBTypeResolver struct {
	DB *gorm.DB
}

func NewDBTypeResolver(db *gorm.DB) *DBTypeResolver {
	return &DBTypeResolver{DB: db}
}

func typeNameCacheKey(typeId int64) string {
	return fmt.Sprintf("profit:typename:%d", typeId)
}

func (r *DBTypeResolver) ResolveTypeName(ctx context.Context, typeId int64) (string, error) {
	var cached string
	if hit, err := config.GetRedisObject(typeNameCacheKey(typeId), &cached); err == nil && hit && cached != "" {
		return cached, nil
	}

	var name string
	err := r.DB.WithContext(ctx).Raw(`
		SELECT type_name FROM inv_types WHERE type_id = ?
	`, typeId).Scan(&name).Error
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("%w: %d", ErrTypeNotFound, typeId)
	}

	_ = config.SetRedisObject(typeNameCacheKey(typeId), name, typeNameCacheTTL)
	return name, nil
}
