package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open はSQLiteデータベース接続を開く。
// pathにはデータベースファイルのパスを指定する（例: "./chatroom.db"）。
// 外部キー制約を有効化し、同時書き込みはbusy_timeoutで直列化する。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは単一ライターのため、コネクションプールを1本に制限して
	// SQLITE_BUSYの発生を抑える。
	db.SetMaxOpenConns(1)

	return db, nil
}
