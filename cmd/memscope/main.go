package main

import "memscope/cmd/memscope/cmd"

func main() {
	cmd.Execute()
}
