//go:build !windows

package reader

const defaultNewline = "\n"
