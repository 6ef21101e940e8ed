package main

import "github.com/KaramelBytes/rawready/cmd"

func main() {
	cmd.Execute()
}
