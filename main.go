// Package main is the entry point of the xk6-locator command line tool.
package main

import (
	"github.com/liuxd6825/xk6-locator/cmd"
)

func main() {
	cmd.Execute()
}
