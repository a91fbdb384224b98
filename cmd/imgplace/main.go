// Command imgplace displays images in a Kitty-Graphics-Protocol-capable
// terminal using Unicode placeholder cells, and manages the durable
// state (image IDs, upload records, conversion cache) that makes
// repeated displays of the same image cheap.
package main

func main() {
	Execute()
}
