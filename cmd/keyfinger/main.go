// Command keyfinger records where keys sit in a camera frame and attributes
// keystrokes to the finger that pressed them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
