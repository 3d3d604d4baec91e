package render

import (
	"io"

	"github.com/mdp/qrterminal/v3"
)

// Terminal writes content as a half-block QR code at level H.
func Terminal(w io.Writer, content string) {
	qrterminal.GenerateHalfBlock(content, qrterminal.H, w)
}
