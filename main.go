package main

import "github.com/cartogr/cartog/cmd"

func main() {
	cmd.Execute()
}
