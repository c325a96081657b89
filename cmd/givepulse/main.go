package main

import "github.com/givepulse/givepulse/internal/cli"

func main() {
	cli.Execute()
}
