package main

import (
	"skim/cmd/handlers"
	"skim/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
