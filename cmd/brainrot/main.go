package main

import (
	"github.com/joho/godotenv"

	"github.com/felixgeelhaar/brainrot/cmd/brainrot/cli"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()
	cli.Execute()
}
