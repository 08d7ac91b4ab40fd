package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently
// across log statements so log aggregation and querying line up.
const (
	KeyTraceID = "trace_id"

	KeyOperation = "operation" // upload, move, delete, login, grant, ...
	KeyPath      = "path"      // virtual path under "root/"
	KeyOldPath   = "old_path"  // source path for move
	KeyNewPath   = "new_path"  // destination path for move

	KeyUserID     = "user_id"
	KeyTargetUser = "target_user_id"

	KeyHash    = "hash"    // content hash, hex SHA-256
	KeySize    = "size"    // byte size
	KeyDupe    = "is_dupe" // whether an upload reused an existing media row

	KeyErrorCode = "error_code"
	KeyDuration  = "duration_ms"
)

// FromLogContext renders a LogContext as slog attributes.
func FromLogContext(lc *LogContext) []slog.Attr {
	if lc == nil {
		return nil
	}
	attrs := make([]slog.Attr, 0, 6)
	if lc.TraceID != "" {
		attrs = append(attrs, slog.String(KeyTraceID, lc.TraceID))
	}
	if lc.Operation != "" {
		attrs = append(attrs, slog.String(KeyOperation, lc.Operation))
	}
	if lc.Path != "" {
		attrs = append(attrs, slog.String(KeyPath, lc.Path))
	}
	if lc.UserID != 0 {
		attrs = append(attrs, slog.Int64(KeyUserID, lc.UserID))
	}
	if lc.Hash != "" {
		attrs = append(attrs, slog.String(KeyHash, lc.Hash))
	}
	attrs = append(attrs, slog.Float64(KeyDuration, lc.DurationMs()))
	return attrs
}
