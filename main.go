package main

import "github.com/andresmejia3/facepack/cmd"

func main() {
	cmd.Execute()
}
