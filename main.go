package main

import "github.com/deploymenttheory/go-sffs/cmd"

func main() {
	cmd.Execute()
}
