package main

import "github.com/trobanga/rastergate/cmd"

func main() {
	cmd.Execute()
}
