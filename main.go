package main

import "github.com/brogergvhs/showscrape/cmd"

func main() {
	cmd.Execute()
}
