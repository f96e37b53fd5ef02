package util

import (
	"fmt"
	"strings"
)

// Chunk
func Chunk[T any](collection []T, size int) [][]T {
	ret := make([][]T, 0, len(collection)/size+1)
	for i := 0; i < len(collection); i = i + size {
		var bound int
		if i+size < len(collection) {
			bound = i + size
		} else {
			bound = len(collection)
		}
		ret = append(ret, collection[i:bound])
	}
	return ret
}

// HexRows renders b as hexdump rows of width bytes. Each row starts with
// the address of its first byte, counted from addr.
func HexRows(addr uint64, b []byte, width int) []string {
	if width <= 0 {
		width = 16
	}
	rows := make([]string, 0, len(b)/width+1)
	for i, row := range Chunk(b, width) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%08x ", addr+uint64(i*width))
		for j := 0; j < width; j++ {
			if j < len(row) {
				fmt.Fprintf(&sb, " %02x", row[j])
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString("  |")
		for _, c := range row {
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			sb.WriteByte(c)
		}
		sb.WriteByte('|')
		rows = append(rows, sb.String())
	}
	return rows
}
