package main

import (
	"os"
)

// Version is stamped by the build.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
