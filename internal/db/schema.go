// Package db provides SQLite persistence for the transcript history.
package db

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transcript TEXT NOT NULL,
	polished TEXT,
	timestamp REAL NOT NULL,
	wordCount INTEGER NOT NULL DEFAULT 0,
	polishUsed INTEGER NOT NULL DEFAULT 0,
	favorite INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS history_timestamp ON history(timestamp);
`
