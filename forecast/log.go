package forecast

import (
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-forecast/logging"
)

func componentLogger(l logrus.FieldLogger, name string) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return logging.Component(name)
}
