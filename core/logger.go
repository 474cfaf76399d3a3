package core

// Logger is implemented by the app loggers.
// args may contain errors, a map[string]interface{} of extras and the logged-in user.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
