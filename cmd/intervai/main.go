package main

import "github.com/intervai-dev/intervai/internal/cli"

func main() {
	cli.Execute()
}
