/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package protocol

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// PacketSizeBytes sets the size of NTP packet
const PacketSizeBytes = 48

// Packet is an NTPv4 packet
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc5905
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                     Reference Timestamp (64)                  +
  |                                                               |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Origin Timestamp (64)                    +
  |                                                               |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Receive Timestamp (64)                   +
  |                                                               |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Transmit Timestamp (64)                  +
  |                                                               |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

 0 1 2 3 4 5 6 7
+-+-+-+-+-+-+-+-+
|LI | VN  |Mode |
+-+-+-+-+-+-+-+-+
 0 0 1 0 0 0 1 1

Setting = LI | VN  |Mode. Client request example:
00 100 011 (or 0x23)
|  |   +-- client mode (3)
|  + ----- version (4)
+ -------- leap indicator, 0 no warning
*/
type Packet struct {
	Settings       uint8  // leap indicator, version number and mode
	Stratum        uint8  // stratum
	Poll           int8   // poll, power of 2
	Precision      int8   // precision, power of 2
	RootDelay      uint32 // total delay to the reference clock
	RootDispersion uint32 // total dispersion to the reference clock
	ReferenceID    uint32 // identifier of server or a reference clock, or KoD reason code
	RefTimeSec     uint32
	RefTimeFrac    uint32
	OrigTimeSec    uint32 // echo of the request's nonce, high 32 bits
	OrigTimeFrac   uint32 // echo of the request's nonce, low 32 bits
	RxTimeSec      uint32 // server receive time, NTP seconds
	RxTimeFrac     uint32 // server receive time, NTP fraction
	TxTimeSec      uint32 // server transmit time, NTP seconds
	TxTimeFrac     uint32 // server transmit time, NTP fraction
}

const (
	liNoWarning = 0
	vnVersion4  = 4
	modeClient  = 3
	// ModeServer is the Mode value a compliant server stamps on its reply
	ModeServer = 4
	// StratumKoD is the Kiss-of-Death stratum (RFC 5905 7.4): the server
	// declines to answer and ReferenceID carries a 4-character reason code.
	StratumKoD = 0
	// StratumMin and StratumMax bound a legitimate, non-KoD stratum.
	StratumMin = 1
	StratumMax = 15
)

// NewRequest builds a client-mode NTPv4 query. The transmit timestamp field
// carries a random 64-bit nonce rather than the local wall clock: a client
// that distrusts its own clock has nothing meaningful to stamp there, and
// the nonce still lets the reply be matched unambiguously (RFC 5905's
// originate-timestamp echo).
func NewRequest() (req *Packet, nonce uint64, err error) {
	var nonceBytes [8]byte
	if _, err := rand.Read(nonceBytes[:]); err != nil {
		return nil, 0, fmt.Errorf("generating request nonce: %w", err)
	}
	nonce = binary.BigEndian.Uint64(nonceBytes[:])
	return &Packet{
		Settings:   liNoWarning<<6 | vnVersion4<<3 | modeClient,
		TxTimeSec:  uint32(nonce >> 32),
		TxTimeFrac: uint32(nonce),
	}, nonce, nil
}

// Mode returns the Mode sub-field decoded out of Settings
func (p *Packet) Mode() uint8 {
	return p.Settings & 0x7
}

// Nonce64 packs the pair of big-endian uint32 halves an NTP timestamp field
// is made of back into the 64-bit nonce it represents.
func Nonce64(sec, frac uint32) uint64 {
	return uint64(sec)<<32 | uint64(frac)
}

// Bytes converts Packet to []bytes
func (p *Packet) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	err := binary.Write(&buf, binary.BigEndian, p)
	return buf.Bytes(), err
}

// BytesToPacket converts []bytes to Packet
func BytesToPacket(ntpPacketBytes []byte) (*Packet, error) {
	if len(ntpPacketBytes) != PacketSizeBytes {
		return nil, fmt.Errorf("expected %d byte NTP packet, got %d", PacketSizeBytes, len(ntpPacketBytes))
	}
	packet := &Packet{}
	reader := bytes.NewReader(ntpPacketBytes)
	err := binary.Read(reader, binary.BigEndian, packet)
	return packet, err
}
