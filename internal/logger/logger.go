package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Log глобальный структурированный логгер приложения.
var Log *logrus.Logger

// Init настраивает логгер с заданным уровнем. По умолчанию — JSON
// формат с RFC3339 метками времени; development окружение переключает
// формат через SetTextFormatter.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
}

// SetTextFormatter переключает логгер на человекочитаемый формат.
func SetTextFormatter() {
	if Log == nil {
		return
	}
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
}
