package main

import (
	"log/slog"

	"github.com/saishdhuri8/NFC4-CodeShot/internal/logging"
)

func main() {
	logging.Init(slog.LevelError)
	Execute()
}
