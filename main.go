package main

import "github.com/ferrule/hoard/cmd"

func main() {
	cmd.Execute()
}
