// Command server runs the room relay: a WebSocket signaling server that lets
// browsers in the same room exchange WebRTC offers, answers and ICE
// candidates, set display names and chat.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
