package luckyreel

import "embed"

// EmbeddedAssets holds the interaction tracker served at /public/tracker.js.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
