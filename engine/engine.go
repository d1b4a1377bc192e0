// Package engine defines translation engine implementations.
package engine

import "github.com/ZaguanLabs/transcache"

// Engine is the interface for translation backends.
// This is an alias to the main package interface for convenience.
type Engine = transcache.Engine

// TranslateRequest is an alias to the main package type.
type TranslateRequest = transcache.TranslateRequest
