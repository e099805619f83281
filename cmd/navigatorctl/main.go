// Command navigatorctl is the operator CLI of the navigator engine: schema
// migrations, catalog validation, offline quiz grading and risk scoring.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
