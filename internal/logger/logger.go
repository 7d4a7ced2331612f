package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared application logger. Handlers and clients log through
// it; the pricing core never does.
var Log = logrus.New()

func Init() error {
	return InitWithConfig("info", "ivsurface.log")
}

// InitWithConfig configures the shared logger with a level name
// (error/warn/info/debug) and a log file. Output goes to both stdout and
// the file so the server stays readable in a terminal.
func InitWithConfig(logLevel, logFilePath string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	Log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	return nil
}
