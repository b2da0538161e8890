package main

import (
	"ChatBGM/cmd"
)

func main() {
	cmd.Execute()
}
