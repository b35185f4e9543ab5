package main

import "github.com/abelzeko/waterwatch/internal/cli"

func main() {
	cli.Execute()
}
