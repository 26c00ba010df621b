package core

// Logger is the app-wide logging contract; implementations may ship
// entries to an error tracker on top of printing them.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	// Fatal logs then exits the program.
	Fatal(msg string, args ...interface{})
}
