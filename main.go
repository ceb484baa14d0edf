package main

import "github.com/simrailtools/backend-sub003/cmd"

func main() {
	cmd.Execute()
}
