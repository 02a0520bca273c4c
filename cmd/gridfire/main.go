package main

import "gridfire.ai/internal/cli"

func main() {
	cli.Execute()
}
