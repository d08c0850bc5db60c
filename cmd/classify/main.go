// Package main is the entry point for the classify command line tool.
package main

import (
	"os"

	"github.com/Brownie44l1/dept-classifier/cmd/classify/internal/commands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := commands.NewRootCommand(&commands.CommandHandler{}).Execute(); err != nil {
		os.Exit(1)
	}
}
