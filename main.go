package main

import (
	"github.com/meidash/backend/cmd/app"
)

func main() {
	app.Run()
}
