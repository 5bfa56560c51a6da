package main

import (
	"fmt"
	"os"

	"github.com/turtacn/Vigil/internal/cli"
	"github.com/turtacn/Vigil/pkg/logger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if logger.Log != nil {
				logger.Log.Error("Panic recovered", "panic", r)
			}
			fmt.Fprintf(os.Stderr, "vigil: panic: %v\n", r)
			os.Exit(1)
		}
	}()

	cli.Execute()
}

// Personal.AI order the ending
