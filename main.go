package main

import "github.com/nextlevelbuilder/ralph-gate/cmd"

func main() {
	cmd.Execute()
}
