// Command flyvectl administers a flyvemdm backend over its HTTP API.
package main

import "flyvemdm/cmd/flyvectl/commands"

func main() {
	commands.Execute()
}
