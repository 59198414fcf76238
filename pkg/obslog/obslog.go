// Package obslog centralizes the structured-log field names every engine
// uses with log/slog, and wires up the process-wide handler (JSON in prod,
// text in dev) the way cmd/incidentd's gin mode is picked from the
// environment.
package obslog

import (
	"log/slog"
	"os"
)

// Stable field-name constants so "incident_id" is spelled the same way in
// every package that logs one.
const (
	FieldIncidentID    = "incident_id"
	FieldAlertID       = "alert_id"
	FieldGroupID       = "group_id"
	FieldPolicyID      = "policy_id"
	FieldPolicyName    = "policy_name"
	FieldRuleID        = "rule_id"
	FieldPlaybookID    = "playbook_id"
	FieldPlaybookName  = "playbook_name"
	FieldNotificationID = "notification_id"
	FieldWorkerID      = "worker_id"
	FieldSource        = "source"
	FieldSeverity      = "severity"
	FieldError         = "error"
	FieldDurationMS    = "duration_ms"
)

// Init installs the process-wide slog handler. env selects the format:
// "production" gets JSON at Info level, anything else gets human-readable
// text at Debug level — the same debug-by-default posture the teacher's
// gin.SetMode(getEnv("GIN_MODE", "debug")) takes for its HTTP router.
func Init(env string) {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}
