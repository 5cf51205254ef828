// Copyright (C) 2025 duggavo
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package util

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

func Time() uint64 {
	return uint64(time.Now().Unix())
}

func Itob(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func Btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func RandomUint64() uint64 {
	b := make([]byte, 8)
	rand.Read(b)

	return binary.BigEndian.Uint64(b)
}

// RandRange returns a random integer in the range [min, max].
func RandRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + int64(RandomUint64()%uint64(max-min+1))
}

func DumpJson(d any) string {

	data, err := json.MarshalIndent(d, "", "\t")
	if err != nil {
		panic(err)
	}

	return string(data)
}

// SortedKeys returns the string keys of a map in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func FormatUint[K uint | uint8 | uint16 | uint32 | uint64](n K) string {
	return strconv.FormatUint(uint64(n), 10)
}
func FormatInt[K int | int8 | int16 | int32 | int64](n K) string {
	return strconv.FormatInt(int64(n), 10)
}
