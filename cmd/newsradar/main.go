package main

import (
	"newsradar/cmd/cmd"
	"newsradar/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
