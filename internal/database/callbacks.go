package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// =============================================================================
// ⏱️ 查询耗时回调
// =============================================================================

// QueryRecorder 接收单条语句耗时，*metrics.Collector 满足此接口
type QueryRecorder interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

const startedAtKey = "wikichat:started_at"

// RegisterQueryMetrics 在 create/query/update/delete/row/raw 回调前后挂钩，
// 按操作类型记录语句耗时
func RegisterQueryMetrics(db *gorm.DB, name string, recorder QueryRecorder) error {
	if db == nil || recorder == nil {
		return fmt.Errorf("database handle and recorder are required")
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(startedAtKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startedAtKey)
			if !ok {
				return
			}
			if start, ok := v.(time.Time); ok {
				recorder.RecordDBQuery(name, operation, time.Since(start))
			}
		}
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("wikichat:before_create", before),
		cb.Create().After("gorm:create").Register("wikichat:after_create", after("create")),
		cb.Query().Before("gorm:query").Register("wikichat:before_query", before),
		cb.Query().After("gorm:query").Register("wikichat:after_query", after("query")),
		cb.Update().Before("gorm:update").Register("wikichat:before_update", before),
		cb.Update().After("gorm:update").Register("wikichat:after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("wikichat:before_delete", before),
		cb.Delete().After("gorm:delete").Register("wikichat:after_delete", after("delete")),
		cb.Row().Before("gorm:row").Register("wikichat:before_row", before),
		cb.Row().After("gorm:row").Register("wikichat:after_row", after("row")),
		cb.Raw().Before("gorm:raw").Register("wikichat:before_raw", before),
		cb.Raw().After("gorm:raw").Register("wikichat:after_raw", after("raw")),
	)
}
