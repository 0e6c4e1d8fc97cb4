package main

import "github.com/frahmantamala/ward-census/cmd"

func main() {
	cmd.Execute()
}
