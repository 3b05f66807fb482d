package main

import (
	"os"

	"github.com/darioristic/opsdesk/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
