// Package main is the single-binary entrypoint for the HomeSoil gateway.
package main

import "github.com/neriamosgionata/homesoil/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
