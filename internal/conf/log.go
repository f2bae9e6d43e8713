package conf

import (
	"fmt"

	"movelink/internal/flog"
)

type Log struct {
	Level_ string     `yaml:"level"`
	Level  flog.Level `yaml:"-"`
}

func (l *Log) setDefaults() {
	if l.Level_ == "" {
		l.Level_ = "info"
	}
}

func (l *Log) validate() []error {
	var errors []error

	lvl, err := flog.ParseLevel(l.Level_)
	if err != nil {
		errors = append(errors, fmt.Errorf("log: %v", err))
	}
	l.Level = lvl

	return errors
}
