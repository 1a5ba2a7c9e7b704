package main

import (
	"github.com/joho/godotenv"

	"ms-boxoffice/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
