package main

import (
	"context"
	"os"

	// Uncomment to load all auth plugins
	// _ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/sirupsen/logrus"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
	"github.com/litmuschaos/chaos-advisor/pkg/log"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		rootCause, errorType := cerrors.GetRootCauseAndErrorCode(err)
		log.ErrorWithValues("[Advisor]: Command failed", logrus.Fields{
			"Reason":    rootCause,
			"ErrorType": errorType,
		})
		os.Exit(cerrors.ExitCode(err))
	}
}
