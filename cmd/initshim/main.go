package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/axondata/go-initshim/internal/app"
)

func main() {
	if err := app.Execute(filepath.Base(os.Args[0]), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
