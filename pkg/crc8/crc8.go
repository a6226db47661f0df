// Package crc8 computes the table driven 8-bit CRC used by Si70xx
// humidity sensors (x^8 + x^5 + x^4 + 1, initial value 0x00).
package crc8

import (
	"fmt"
	"sync"
)

// DI is the generator polynomial without its x^8 term.
const DI = 0x31

// Size is the size of a checksum in bytes.
const Size = 1

var (
	table     [256]byte
	tableOnce sync.Once
)

func buildTable() {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for j := 0; j < 8; j++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ DI
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
}

// Table returns the lookup table, building it on first use.
// The returned table must not be modified.
func Table() *[256]byte {
	tableOnce.Do(buildTable)
	return &table
}

// Fold appends one byte to a running checksum.
func Fold(crc, b byte) byte {
	return Table()[crc^b]
}

// Checksum computes the checksum of data starting from 0x00.
func Checksum(data ...byte) byte {
	var crc byte
	for _, b := range data {
		crc = Fold(crc, b)
	}
	return crc
}

// MismatchError reports a check byte which doesn't match the data.
type MismatchError struct {
	Expected byte
	Computed byte
}

// Error implements error.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("crc mismatch: device 0x%02x, computed 0x%02x", e.Expected, e.Computed)
}

// Verify checks expected against the checksum of data.
func Verify(expected byte, data ...byte) error {
	if crc := Checksum(data...); crc != expected {
		return &MismatchError{Expected: expected, Computed: crc}
	}
	return nil
}

// Hash is a running checksum implementing hash.Hash.
type Hash struct {
	crc byte
}

// New creates a Hash.
func New() *Hash {
	return &Hash{}
}

// Write implements io.Writer. It never fails.
func (h *Hash) Write(p []byte) (int, error) {
	for _, b := range p {
		h.crc = Fold(h.crc, b)
	}
	return len(p), nil
}

// Sum8 returns the current checksum.
func (h *Hash) Sum8() byte {
	return h.crc
}

// Sum implements hash.Hash.
func (h *Hash) Sum(in []byte) []byte {
	return append(in, h.crc)
}

// Reset implements hash.Hash.
func (h *Hash) Reset() {
	h.crc = 0
}

// Size implements hash.Hash.
func (h *Hash) Size() int { return Size }

// BlockSize implements hash.Hash.
func (h *Hash) BlockSize() int { return 1 }
