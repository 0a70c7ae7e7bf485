package database

import (
	"context"
	"database/sql"
)

type PgNotepadRepository struct {
	conn *sql.DB
}

func NewPgNotepadRepository(dsn string) (*PgNotepadRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgNotepadRepository{conn: db}, nil
}

func (db *PgNotepadRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgNotepadRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
