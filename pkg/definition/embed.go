package definition

import (
	"embed"
	"io/fs"
)

//go:embed definitions/*
var embeddedDefinitions embed.FS

// EmbeddedFS returns the bundled wizard definitions.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedDefinitions, "definitions")
	if err != nil {
		panic(err)
	}
	return sub
}

// LoadEmbedded loads the bundled definitions.
func LoadEmbedded() (*Store, error) {
	return LoadFS(EmbeddedFS())
}
