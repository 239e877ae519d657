package session

import (
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL
);`

// SQLiteStore держит сессию единственной строкой таблицы session.
// Удобен, когда рядом уже есть база бота и плодить файлы не хочется.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (ss *SQLiteStore) Load() (Data, bool, error) {
	data := Defaults()
	var raw string
	err := ss.db.QueryRow(`SELECT data FROM session WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return data, false, nil
	}
	if err != nil {
		return data, false, err
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return data, false, err
	}
	return data, true, nil
}

func (ss *SQLiteStore) Save(data Data) error {
	b, err := json.Marshal(&data)
	if err != nil {
		return err
	}
	_, err = ss.db.Exec(
		`INSERT INTO session (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, string(b))
	return err
}

func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}
