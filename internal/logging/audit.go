package logging

import (
	"time"

	"go.uber.org/zap"
)

// AuditEventType names a structured event in the build/verify trail.
type AuditEventType string

const (
	// Compiler invocations
	AuditCompileStart    AuditEventType = "compile_start"
	AuditCompileComplete AuditEventType = "compile_complete"
	AuditCompileError    AuditEventType = "compile_error"
	AuditSourceMapCopy   AuditEventType = "sourcemap_copy"

	// Rebuild trigger
	AuditRebuildTriggered AuditEventType = "rebuild_triggered"
	AuditRebuildIgnored   AuditEventType = "rebuild_ignored"

	// Provisioning
	AuditProvisionReady AuditEventType = "provision_ready"
	AuditProvisionError AuditEventType = "provision_error"

	// Verification
	AuditVerifyStart   AuditEventType = "verify_start"
	AuditVerifyVerdict AuditEventType = "verify_verdict"
	AuditRetryAttempt  AuditEventType = "retry_attempt"
)

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Type     AuditEventType
	Target   string // path, URL or scenario the event is about
	Success  bool
	Duration time.Duration
	Error    string
	Fields   map[string]interface{}
}

// Audit writes e to the "audit" logger as a single structured entry.
func Audit(e AuditEvent) {
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		zap.Bool("success", e.Success),
	}
	if e.Target != "" {
		fields = append(fields, zap.String("target", e.Target))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("duration", e.Duration))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	l := L().Named("audit")
	if e.Success {
		l.Debug("audit", fields...)
		return
	}
	l.Info("audit", fields...)
}
