package main

import "github.com/nextlevelbuilder/keyproxy/cmd"

func main() {
	cmd.Execute()
}
