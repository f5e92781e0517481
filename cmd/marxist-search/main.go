// Package main provides the entry point for the marxist-search CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/domwxyz/marxist-search/cmd/marxist-search/cmd"
)

func main() {
	// A .env in the working directory can carry SEARCH_* overrides.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
