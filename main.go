// The main package for the deanagent executable.
package main

import (
	"github.com/Ryder-MHumble/deanagent/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
