package db

var Schema string = `
CREATE TABLE IF NOT EXISTS answers
(
    id       TEXT PRIMARY KEY,
    query_id TEXT NOT NULL,

    content           TEXT,
    provider          TEXT,
    provider_metadata TEXT DEFAULT '{}',

    relevance_score    REAL DEFAULT 0,
    accuracy_score     REAL DEFAULT 0,
    completeness_score REAL DEFAULT 0,
    overall_score      REAL DEFAULT 0,

    is_validated INTEGER DEFAULT 0,
    status       TEXT DEFAULT 'pending',

    created_at INTEGER DEFAULT (strftime('%s', 'now')),
    updated_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE INDEX IF NOT EXISTS answers_query_id ON answers (query_id);

CREATE TABLE IF NOT EXISTS answer_metadata
(
    id        TEXT PRIMARY KEY,
    answer_id TEXT NOT NULL REFERENCES answers (id) ON DELETE CASCADE,
    key       TEXT NOT NULL,
    value     TEXT,

    created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS validation_results
(
    id              TEXT PRIMARY KEY,
    answer_id       TEXT NOT NULL REFERENCES answers (id) ON DELETE CASCADE,
    validation_type TEXT NOT NULL,
    status          TEXT NOT NULL,
    message         TEXT,
    confidence      REAL DEFAULT 1.0,
    details         TEXT DEFAULT '{}',

    created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS score_records
(
    id          TEXT PRIMARY KEY,
    answer_id   TEXT NOT NULL REFERENCES answers (id) ON DELETE CASCADE,
    metric_type TEXT NOT NULL,
    score       REAL NOT NULL,
    weight      REAL NOT NULL,
    explanation TEXT,

    created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS embeddings
(
    model  TEXT NOT NULL,
    digest TEXT NOT NULL,
    vector BLOB NOT NULL,

    created_at INTEGER DEFAULT (strftime('%s', 'now')),

    CONSTRAINT unique_model_digest UNIQUE (model, digest)
);`
