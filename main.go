package main

import "github.com/unclewu3242592726/tritalk/cmd"

func main() {
	cmd.Execute()
}
