package main

import (
	"github.com/durablenotify/notifysvc/internal/app"
	"go.uber.org/fx"
)

// main is the entry point for the background worker application.
func main() {
	fx.New(app.WorkerModule).Run()
}
