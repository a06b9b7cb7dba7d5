package main

import "github.com/robmorgan/orbit/cmd"

func main() {
	cmd.Execute()
}
