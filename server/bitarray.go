// Copyright © 2018 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"math/bits"
)

// BitArray implements a set using a bit array.  The server uses one per
// client to track apid subscriptions.  It only includes operations needed by
// the server.
type BitArray []uint64

// NewBitArray returns a new BitArray object
func NewBitArray(count int) *BitArray {
	if count < 0 {
		r := BitArray(make([]uint64, 0))
		return &r
	}
	r := BitArray(make([]uint64, 1+count/64))
	return &r
}

// SetBit sets the bit at pos to 1
func (b BitArray) SetBit(pos int) error {
	cell, bitpos := b.getPosition(pos)
	if cell < 0 || cell >= len(b) {
		return fmt.Errorf("bit position out-of-range: %d", pos)
	}
	b[cell] = b[cell] | (1 << bitpos)
	return nil
}

// ClearBit sets the bit at pos to 0
func (b BitArray) ClearBit(pos int) error {
	cell, bitpos := b.getPosition(pos)
	if cell < 0 || cell >= len(b) {
		return fmt.Errorf("bit position out-of-range: %d", pos)
	}
	b[cell] = b[cell] & (^(1 << bitpos))
	return nil
}

// GetBit returns the value of the bit as true/false.  If pos is out-of-range, the returned value is false
func (b BitArray) GetBit(pos int) bool {
	cell, bitpos := b.getPosition(pos)
	if cell < 0 || cell >= len(b) {
		return false
	}
	if (b[cell] & (1 << bitpos)) == 0 {
		return false
	}
	return true
}

// OrInto modifies the receiving BitArray, or'ing its values with the other bit array
func (b BitArray) OrInto(o BitArray) {
	max := len(b)
	if len(o) < max {
		max = len(o)
	}
	for i := 0; i < max; i++ {
		b[i] = b[i] | o[i]
	}
}

// IsZero returns true if all bits in this BitArray are 0, else false
func (b BitArray) IsZero() bool {
	for i := 0; i < len(b); i++ {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

// Copy returns a copy of this bit array
func (b BitArray) Copy() *BitArray {
	r := BitArray(make([]uint64, len(b)))
	copy(r, b)
	return &r
}

func (b BitArray) getPosition(pos int) (int, uint) {
	return pos / 64, uint(pos) % 64
}

// BitCount returns the number of bits set
func (b BitArray) BitCount() int {
	count := 0
	for _, l := range b {
		count += bits.OnesCount64(l)
	}
	return count
}
