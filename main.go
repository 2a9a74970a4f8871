package main

import "github.com/CosmoTheDev/ctrlreview/cmd"

func main() {
	cmd.Execute()
}
