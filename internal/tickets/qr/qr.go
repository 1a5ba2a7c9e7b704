package qr

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Generator struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{Size: size, Level: qrcode.Medium}
}

// PNG renders the entry code exactly as the door scanner expects to read it.
func (g *Generator) PNG(code string) ([]byte, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("empty ticket code")
	}
	return qrcode.Encode(strings.ToUpper(code), g.Level, g.Size)
}
