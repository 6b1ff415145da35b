package core

// Logger is implemented by the app loggers.
// Besides the message, args may hold an error, a map[string]interface{} of extras or the staff user in context.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
