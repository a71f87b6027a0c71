//go:build windows

package reader

const defaultNewline = "\r\n"
