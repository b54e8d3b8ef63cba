package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/qoeplatform/qoe/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// interruptExitCode is the conventional status of a process killed by SIGINT.
const interruptExitCode = 130

func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Warn().Msg(msg) }, os.Exit)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging to stderr when DEBUG_QOE is set
// to anything but "", "0" or "false", and disables logging otherwise.
func configureLogLevelFromEnv() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEBUG_QOE"))) {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt cancels the running command on the first interrupt so partial
// downloads are cleaned up, and exits on the second.
func handleInterrupt(stopChan chan os.Signal, cancel context.CancelFunc, logMsg func(string), exit func(int)) {
	<-stopChan
	logMsg("Interrupt signal received. Cancelling...")
	cancel()
	<-stopChan
	logMsg("Interrupt signal received again. Exiting...")
	exit(interruptExitCode)
}
