package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id              TEXT PRIMARY KEY,
	source_app      TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL DEFAULT '',
	timestamp       DATETIME NOT NULL,
	processed       INTEGER NOT NULL DEFAULT 0 CHECK(processed IN (0, 1)),
	processed_at    DATETIME,
	related_task_id TEXT,
	skip_reason     TEXT
);

CREATE TABLE IF NOT EXISTS tasks (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL DEFAULT 'general'
		CHECK(category IN ('general', 'meetings', 'finance', 'shopping', 'communication', 'health')),
	priority           TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('low', 'medium', 'high')),
	status             TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_progress', 'completed')),
	due_date           DATETIME,
	completed_at       DATETIME,
	source             TEXT NOT NULL DEFAULT 'manual' CHECK(source IN ('notification', 'chat', 'manual')),
	source_app         TEXT,
	is_deleted         INTEGER NOT NULL DEFAULT 0 CHECK(is_deleted IN (0, 1)),
	location_dependent INTEGER NOT NULL DEFAULT 0 CHECK(location_dependent IN (0, 1)),
	weather_dependent  INTEGER NOT NULL DEFAULT 0 CHECK(weather_dependent IN (0, 1)),
	time_dependent     INTEGER NOT NULL DEFAULT 0 CHECK(time_dependent IN (0, 1)),
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	CHECK((status = 'completed') = (completed_at IS NOT NULL))
);

CREATE TABLE IF NOT EXISTS task_locations (
	id              TEXT PRIMARY KEY,
	task_id         TEXT NOT NULL REFERENCES tasks(id),
	name            TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL DEFAULT '',
	latitude        REAL NOT NULL DEFAULT 0,
	longitude       REAL NOT NULL DEFAULT 0,
	place_id        TEXT NOT NULL,
	rating          REAL,
	is_open         INTEGER,
	distance_meters INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_ledger (
	task_id            TEXT NOT NULL,
	notification_type  TEXT NOT NULL,
	last_sent_time     DATETIME NOT NULL,
	notification_count INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (task_id, notification_type)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_unprocessed
	ON notifications(processed, timestamp);
CREATE INDEX IF NOT EXISTS idx_notifications_source_app
	ON notifications(source_app, timestamp);

CREATE INDEX IF NOT EXISTS idx_tasks_active
	ON tasks(is_deleted, status, created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_source_app
	ON tasks(source_app, created_at);

CREATE INDEX IF NOT EXISTS idx_task_locations_task_id ON task_locations(task_id);
CREATE INDEX IF NOT EXISTS idx_task_locations_place_id ON task_locations(place_id);

CREATE INDEX IF NOT EXISTS idx_notification_ledger_sent
	ON notification_ledger(last_sent_time);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
