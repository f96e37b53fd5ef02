package logflags

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var obj = false
var load = false
var report = false

// logOut is where enabled loggers write. nil means stderr.
var logOut io.Writer

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if logOut != nil {
		logger.Logger.Out = logOut
	} else {
		logger.Logger.Out = os.Stderr
	}
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Obj returns true if format detection should be logged.
func Obj() bool {
	return obj
}

// ObjLogger returns a logger for the format detector.
func ObjLogger() *logrus.Entry {
	return makeLogger(obj, logrus.Fields{"layer": "obj"})
}

// Load returns true if section and symbol extraction should be logged.
func Load() bool {
	return load
}

// LoadLogger returns a logger for the loader. Recoverable symbol table
// failures are reported here.
func LoadLogger() *logrus.Entry {
	return makeLogger(load, logrus.Fields{"layer": "load"})
}

// Report returns true if the report writer should log.
func Report() bool {
	return report
}

func ReportLogger() *logrus.Entry {
	return makeLogger(report, logrus.Fields{"layer": "report"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the layer flags based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	obj, load, report = false, false, false
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "load"
	}
	for _, layer := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(layer) {
		case "obj":
			obj = true
		case "load":
			load = true
		case "report":
			report = true
		}
	}
	return nil
}

// SetOutput redirects every logger created afterwards to w.
func SetOutput(w io.Writer) {
	logOut = w
}
