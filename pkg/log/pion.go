package log

import (
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

// PionLoggerFactory routes pion's internal logging through logrus. Every
// scope gets its own "pion" field so engine chatter can be filtered out.
type PionLoggerFactory struct{}

func (PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{
		entry: logrus.WithField("pion", scope),
	}
}

type pionLogger struct {
	entry *logrus.Entry
}

func (l *pionLogger) Trace(msg string) { l.entry.Trace(msg) }

func (l *pionLogger) Tracef(format string, args ...any) { l.entry.Tracef(format, args...) }

func (l *pionLogger) Debug(msg string) { l.entry.Debug(msg) }

func (l *pionLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

// pion is noisy at info level; demote it so the session's own lines stand out.
func (l *pionLogger) Info(msg string) { l.entry.Debug(msg) }

func (l *pionLogger) Infof(format string, args ...any) { l.entry.Debugf(format, args...) }

func (l *pionLogger) Warn(msg string) { l.entry.Warn(msg) }

func (l *pionLogger) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }

func (l *pionLogger) Error(msg string) { l.entry.Error(msg) }

func (l *pionLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
