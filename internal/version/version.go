// Package version хранит сведения о сборке, проставляемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/legacy-orders/internal/version.version=v1.2.0"
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// Fields возвращает сведения о сборке для стартовой записи лога.
func Fields() log.Fields {
	return log.Fields{
		"version": version,
		"commit":  commit,
		"built":   date,
	}
}
