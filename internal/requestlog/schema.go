// Package requestlog implements the structured request log subsystem.
// Entries are written asynchronously to rolling SQLite databases.
package requestlog

// createDDL defines the schema for request log databases. Each rolling DB
// gets its own request_logs table holding the per-request summary row
// described in spec.md §4.9 (no payload capture: portcullis never buffers
// request or response bodies).
const createDDL = `
CREATE TABLE IF NOT EXISTS request_logs (
	id            TEXT PRIMARY KEY,
	ts_ns         INTEGER NOT NULL,
	client_ip     TEXT NOT NULL DEFAULT '',
	method        TEXT NOT NULL DEFAULT '',
	target_host   TEXT NOT NULL DEFAULT '',
	target_domain TEXT NOT NULL DEFAULT '',
	is_connect    INTEGER NOT NULL DEFAULT 0,
	net_ok        INTEGER NOT NULL DEFAULT 0,
	duration_ns   INTEGER NOT NULL DEFAULT 0,
	ingress_bytes INTEGER NOT NULL DEFAULT 0,
	egress_bytes  INTEGER NOT NULL DEFAULT 0,
	http_status   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_request_logs_ts_ns         ON request_logs(ts_ns);
CREATE INDEX IF NOT EXISTS idx_request_logs_target_domain  ON request_logs(target_domain);
CREATE INDEX IF NOT EXISTS idx_request_logs_client_ip      ON request_logs(client_ip);
`
