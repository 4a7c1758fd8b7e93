package store

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    category TEXT NOT NULL,
    description TEXT,
    source TEXT NOT NULL,
    hardware_tags TEXT NOT NULL DEFAULT '[]',
    popularity REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS installed_state (
    package TEXT PRIMARY KEY,
    installed BOOLEAN NOT NULL,
    changed_at TIMESTAMP NOT NULL,
    FOREIGN KEY (package) REFERENCES packages(name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS usage_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package TEXT NOT NULL,
    kind TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    FOREIGN KEY (package) REFERENCES packages(name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS hardware_facts (
    class TEXT NOT NULL,
    vendor TEXT NOT NULL,
    model TEXT,
    observed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (class, vendor)
);

CREATE TABLE IF NOT EXISTS recommendations (
    package TEXT PRIMARY KEY,
    score REAL NOT NULL,
    reasons TEXT NOT NULL DEFAULT '[]',
    generated_at TIMESTAMP NOT NULL,
    FOREIGN KEY (package) REFERENCES packages(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_usage_package ON usage_events(package);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_installed_flag ON installed_state(installed);
CREATE INDEX IF NOT EXISTS idx_recommendations_score ON recommendations(score);
`
