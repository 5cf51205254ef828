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

package database

import (
	"encoding/binary"

	"github.com/duggavo/serializer"
)

var LIMITS = []byte("limits")
var EXCEPT = []byte("except")
var DISABLED = []byte("disabled")
var VIOLATIONS = []byte("violations")
var CONFIG = []byte("config")

// DisabledUser is the active punishment state of one account. At most
// one exists per username.
type DisabledUser struct {
	Username   string
	DisabledAt uint64
	EnableAt   uint64
	Step       uint64
	Reason     string

	// group ids the account held before the disable, restored on
	// re-enable when the groups disable method is used
	OriginalGroups []int64
}

func (d DisabledUser) Serialize() []byte {
	s := serializer.Serializer{Endian: binary.BigEndian}

	s.AddString(d.Username)
	s.AddUint64(d.DisabledAt)
	s.AddUint64(d.EnableAt)
	s.AddUvarint(d.Step)
	s.AddString(d.Reason)

	s.AddUvarint(uint64(len(d.OriginalGroups)))
	for _, g := range d.OriginalGroups {
		s.AddUvarint(uint64(g))
	}

	return s.Data
}

func (d *DisabledUser) Deserialize(data []byte) error {
	ds := serializer.Deserializer{
		Data:   data,
		Endian: binary.BigEndian,
	}

	d.Username = ds.ReadString()
	d.DisabledAt = ds.ReadUint64()
	d.EnableAt = ds.ReadUint64()
	d.Step = ds.ReadUvarint()
	d.Reason = ds.ReadString()

	numGroups := ds.ReadUvarint()
	d.OriginalGroups = make([]int64, 0, numGroups)
	for i := uint64(0); i < numGroups; i++ {
		d.OriginalGroups = append(d.OriginalGroups, int64(ds.ReadUvarint()))
	}

	return ds.Error
}

// Violation is one append-only log entry. EnabledAt stays zero until
// the re-enable scheduler fills it.
type Violation struct {
	Username  string
	Timestamp uint64
	Step      uint64
	Duration  uint64
	EnabledAt uint64

	// distinct IPs observed; kept separately from the list because the
	// list may be truncated in the future without losing the count
	IPCount int
	IPs     []string
}

func (v Violation) Serialize() []byte {
	s := serializer.Serializer{Endian: binary.BigEndian}

	s.AddString(v.Username)
	s.AddUint64(v.Timestamp)
	s.AddUvarint(v.Step)
	s.AddUint64(v.Duration)
	s.AddUint64(v.EnabledAt)
	s.AddUvarint(uint64(v.IPCount))

	s.AddUvarint(uint64(len(v.IPs)))
	for _, ip := range v.IPs {
		s.AddString(ip)
	}

	return s.Data
}

func (v *Violation) Deserialize(data []byte) error {
	ds := serializer.Deserializer{
		Data:   data,
		Endian: binary.BigEndian,
	}

	v.Username = ds.ReadString()
	v.Timestamp = ds.ReadUint64()
	v.Step = ds.ReadUvarint()
	v.Duration = ds.ReadUint64()
	v.EnabledAt = ds.ReadUint64()
	v.IPCount = int(ds.ReadUvarint())

	numIps := ds.ReadUvarint()
	v.IPs = make([]string, 0, numIps)
	for i := uint64(0); i < numIps; i++ {
		v.IPs = append(v.IPs, ds.ReadString())
	}

	return ds.Error
}
