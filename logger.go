package sessionstore

import "github.com/sirupsen/logrus"

// Logger is the logging interface accepted by the stores. Both
// *logrus.Logger and *logrus.Entry satisfy it.
type Logger = logrus.FieldLogger

// DefaultLogger returns the logrus standard logger tagged with the given
// component name.
func DefaultLogger(component string) Logger {
	return logrus.StandardLogger().WithField("component", component)
}
