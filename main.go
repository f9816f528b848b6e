package main

import (
	"log/slog"
	"os"

	"waitroom/cmd"
	_ "waitroom/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		slog.Error("server terminated", "error", err)
		os.Exit(1)
	}
}
