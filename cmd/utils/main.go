package main

import (
	"github.com/joho/godotenv"

	"github.com/appetiteclub/tavola/cmd/utils/internal/commands"
)

func main() {
	_ = godotenv.Load()
	commands.Execute()
}
