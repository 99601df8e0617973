package main

import "github.com/ValentinKolb/dBot/cmd"

func main() {
	cmd.Execute()
}
