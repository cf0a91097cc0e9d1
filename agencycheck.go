package main

import (
	"os"

	"github.com/joho/godotenv"

	cli "github.com/neboloop/agencycheck/cmd/agencycheck"
)

var version = "dev"

func main() {
	// Load the app's env files if present; .env.local wins over .env and the
	// process environment wins over both.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	os.Exit(cli.Execute(version))
}
