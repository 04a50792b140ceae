package common

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"
)

func NewLogger(i do.Injector) (*logrus.Logger, error) {
	level := do.MustInvokeNamed[string](i, "log-level")

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(parsed)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return log, nil
}
