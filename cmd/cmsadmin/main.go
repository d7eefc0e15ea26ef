package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/cmsadmin/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cmsadmin: %v\n", err)
		os.Exit(1)
	}
}
