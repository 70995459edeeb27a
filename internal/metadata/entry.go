package metadata

// TableName 是持久化表名，沿用 CACHED(path, local_path) 布局以兼容已有数据文件。
const TableName = "CACHED"

// CacheEntry 记录远端标识到本地文件路径的映射，写入后不会被更新或删除。
type CacheEntry struct {
	Identifier string `gorm:"column:path;type:TEXT;primaryKey"`
	LocalPath  string `gorm:"column:local_path;type:TEXT"`
}

// TableName 让 gorm 使用固定表名而不是默认的复数蛇形命名。
func (CacheEntry) TableName() string {
	return TableName
}
