package main

import (
	"fmt"

	"github.com/elevy30/ai-nebius-git-summarize/internal/cli"
	"github.com/elevy30/ai-nebius-git-summarize/internal/utils"
)

// main is the entry point for the gitsum command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()
	if applicationExecutionError := cli.Execute(loggerInstance); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
