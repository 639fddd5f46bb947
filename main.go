// Package main is the entry point for the dwhetl application
package main

import (
	"github.com/tirta-dwh/dwhetl/cmd"
)

func main() {
	cmd.Execute()
}
