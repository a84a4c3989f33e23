package main

import "github.com/ewilliams-labs/cadence/internal/cli"

func main() {
	cli.Execute()
}
