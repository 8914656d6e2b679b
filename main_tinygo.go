//go:build tinygo

package main

import (
	"tickos/app"
	"tickos/hal"
)

func main() {
	app.Run(hal.New())
}
