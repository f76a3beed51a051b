// The main package for the jobsignal executable.
package main

import (
	"github.com/JakeFAU/jobsignal/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
