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

CREATE TABLE IF NOT EXISTS users (
	name         TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS projects (
	id            TEXT PRIMARY KEY,
	key           TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	lead          TEXT NOT NULL DEFAULT '',
	issue_counter INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS grants (
	user_name  TEXT NOT NULL,
	permission TEXT NOT NULL,
	project_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_name, permission, project_id)
);

CREATE TABLE IF NOT EXISTS issue_types (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE,
	subtask INTEGER NOT NULL DEFAULT 0 CHECK(subtask IN (0, 1))
);

CREATE TABLE IF NOT EXISTS issues (
	id          TEXT PRIMARY KEY,
	key         TEXT NOT NULL UNIQUE,
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	type_id     TEXT NOT NULL REFERENCES issue_types(id),
	status      TEXT NOT NULL DEFAULT 'open',
	priority    INTEGER NOT NULL DEFAULT 3 CHECK(priority BETWEEN 1 AND 5),
	summary     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	parent_id   TEXT REFERENCES issues(id) ON DELETE CASCADE,
	reporter    TEXT NOT NULL DEFAULT '',
	assignee    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_issues_project_id ON issues(project_id);
CREATE INDEX IF NOT EXISTS idx_issues_parent_id ON issues(parent_id);

CREATE TABLE IF NOT EXISTS versions (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	start_date   DATETIME,
	release_date DATETIME,
	released     INTEGER NOT NULL DEFAULT 0 CHECK(released IN (0, 1)),
	archived     INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1)),
	sequence     INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_versions_project_id ON versions(project_id);

CREATE TABLE IF NOT EXISTS issue_versions (
	issue_id   TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	version_id TEXT NOT NULL REFERENCES versions(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL CHECK(kind IN ('affects', 'fix')),
	PRIMARY KEY (issue_id, version_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_issue_versions_version ON issue_versions(version_id, kind);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS link_types (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE,
	outward TEXT NOT NULL,
	inward  TEXT NOT NULL,
	style   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS issue_links (
	id             TEXT PRIMARY KEY,
	type_id        TEXT NOT NULL REFERENCES link_types(id) ON DELETE CASCADE,
	source_id      TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	destination_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	sequence       INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(type_id, source_id, destination_id)
);

CREATE INDEX IF NOT EXISTS idx_issue_links_source ON issue_links(source_id);
CREATE INDEX IF NOT EXISTS idx_issue_links_destination ON issue_links(destination_id);

CREATE TABLE IF NOT EXISTS remote_links (
	id               TEXT PRIMARY KEY,
	issue_id         TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	global_id        TEXT NOT NULL,
	url              TEXT NOT NULL,
	title            TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	icon_url         TEXT NOT NULL DEFAULT '',
	relationship     TEXT NOT NULL DEFAULT '',
	application_type TEXT NOT NULL DEFAULT '',
	application_name TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(issue_id, global_id)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS custom_fields (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL UNIQUE,
	type    TEXT NOT NULL,
	options TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS custom_field_values (
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	field_id TEXT NOT NULL REFERENCES custom_fields(id) ON DELETE CASCADE,
	value    TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (issue_id, field_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	issue_id   TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author     TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS change_items (
	id         TEXT PRIMARY KEY,
	issue_id   TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author     TEXT NOT NULL DEFAULT '',
	field      TEXT NOT NULL,
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS worklogs (
	id                 TEXT PRIMARY KEY,
	issue_id           TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author             TEXT NOT NULL DEFAULT '',
	time_spent_seconds INTEGER NOT NULL DEFAULT 0,
	comment            TEXT NOT NULL DEFAULT '',
	started_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_comments_issue ON comments(issue_id);
CREATE INDEX IF NOT EXISTS idx_change_items_issue ON change_items(issue_id);
CREATE INDEX IF NOT EXISTS idx_worklogs_issue ON worklogs(issue_id);

INSERT INTO schema_version (version) VALUES (3);
`,
	},
	{
		version: 4,
		sql: `
CREATE TABLE IF NOT EXISTS import_mappings (
	import_id TEXT NOT NULL,
	kind      TEXT NOT NULL,
	old_id    TEXT NOT NULL,
	new_id    TEXT NOT NULL,
	old_key   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (import_id, kind, old_id)
);

INSERT INTO schema_version (version) VALUES (4);
`,
	},
}
