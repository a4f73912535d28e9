package uptane

import "github.com/datatrails/go-datatrails-common/logger"

// Logger is the narrow diagnostics surface the metadata and firmware
// engines log through: every attack detection and parse abort writes one
// line here at Debug or Warn severity, purely for host-side observability.
// Logging never gates an accept/reject decision (spec §4.11 / §9) so a
// caller on a build with no log sink at all can supply noopLogger.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// noopLogger discards every call; it is the default when an Agent is
// constructed without WithLogger.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

// datatrailsLogger adapts the teacher's own structured-logging dependency
// (github.com/datatrails/go-datatrails-common/logger, a Sugar-style
// leveled logger) to the narrow Logger interface above.
type datatrailsLogger struct {
	sugar logger.Logger
}

// NewLogger wraps a go-datatrails-common logger.Logger (typically obtained
// via logger.Sugar.WithServiceName("uptane")) as an uptane.Logger.
func NewLogger(sugar logger.Logger) Logger {
	return datatrailsLogger{sugar: sugar}
}

func (d datatrailsLogger) Debugf(format string, args ...any) { d.sugar.Debugf(format, args...) }
func (d datatrailsLogger) Warnf(format string, args ...any)  { d.sugar.Infof(format, args...) }

func (a *Agent) logAttack(code AttackCode, role, detail string) {
	a.log.Warnf("uptane: attack detected role=%s code=%s detail=%s", role, code, detail)
}
