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

package ntpauth

import (
	"context"
	"fmt"
	"net"
	"time"

	ntp "github.com/ntpauthd/ntpauthd/ntp/protocol"
)

// NtpSample is one successful query result, per the data model in spec §3.
type NtpSample struct {
	ServerKey     string
	TSend         Instant
	TRecv         Instant
	OffsetMS      int64
	RTTMS         int64
	ServerEpochMS uint64
}

//go:generate mockgen -source=client.go -destination=mock_transport_test.go -package=ntpauth

// udpConn is the subset of *net.UDPConn the client needs; abstracted so unit
// tests can drive the protocol state machine without a real socket.
type udpConn interface {
	SetDeadline(t time.Time) error
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// dialer opens a udpConn to a server; production code dials a real UDP
// socket, tests substitute an in-memory pipe or a mock.
type dialer interface {
	Dial(ctx context.Context, server string) (udpConn, error)
}

type netDialer struct{}

func (netDialer) Dial(ctx context.Context, server string) (udpConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", server)
	if err != nil {
		return nil, err
	}
	return conn.(*net.UDPConn), nil
}

// Client issues single client-mode NTP queries (C1).
type Client struct {
	dial  dialer
	clock monotonicClock
}

// NewClient creates a production Client backed by real UDP sockets and the
// system monotonic clock.
func NewClient() *Client {
	return &Client{dial: netDialer{}, clock: systemClock{}}
}

// Query sends one client-mode NTP query to server and parses the reply. It
// never consults the local wall clock: t_send/t_recv come from the
// monotonic clock, and the request's transmit timestamp carries a random
// nonce rather than the caller's idea of "now".
func (c *Client) Query(ctx context.Context, server string, timeout time.Duration) (NtpSample, error) {
	conn, err := c.dial.Dial(ctx, server)
	if err != nil {
		return NtpSample{}, newQueryError(KindNetwork, server, fmt.Errorf("dial: %w", err))
	}
	defer conn.Close()

	if err := conn.SetDeadline(c.clock.Now().Add(timeout)); err != nil {
		return NtpSample{}, newQueryError(KindNetwork, server, fmt.Errorf("set deadline: %w", err))
	}

	req, nonce, err := ntp.NewRequest()
	if err != nil {
		return NtpSample{}, newQueryError(KindNetwork, server, fmt.Errorf("build request: %w", err))
	}
	reqBytes, err := req.Bytes()
	if err != nil {
		return NtpSample{}, newQueryError(KindNetwork, server, fmt.Errorf("encode request: %w", err))
	}

	tSend := c.clock.Now()
	if _, err := conn.Write(reqBytes); err != nil {
		return NtpSample{}, newQueryError(KindNetwork, server, fmt.Errorf("send: %w", err))
	}

	buf := make([]byte, ntp.PacketSizeBytes)
	n, err := conn.Read(buf)
	tRecv := c.clock.Now()
	if err != nil {
		return NtpSample{}, newQueryError(KindNetwork, server, fmt.Errorf("recv: %w", err))
	}

	reply, err := ntp.BytesToPacket(buf[:n])
	if err != nil {
		return NtpSample{}, newQueryError(KindProtocol, server, fmt.Errorf("parse reply: %w", err))
	}

	return c.toSample(server, tSend, tRecv, nonce, reply)
}

func (c *Client) toSample(server string, tSend, tRecv Instant, nonce uint64, reply *ntp.Packet) (NtpSample, error) {
	if reply.Mode() != ntp.ModeServer {
		return NtpSample{}, newQueryError(KindProtocol, server, fmt.Errorf("unexpected mode %d", reply.Mode()))
	}
	if reply.Stratum == ntp.StratumKoD {
		return NtpSample{}, newQueryError(KindKoD, server, fmt.Errorf("kiss-of-death, referenceID=%#x", reply.ReferenceID))
	}
	if reply.Stratum < ntp.StratumMin || reply.Stratum > ntp.StratumMax {
		return NtpSample{}, newQueryError(KindProtocol, server, fmt.Errorf("stratum %d out of range", reply.Stratum))
	}
	if echoed := ntp.Nonce64(reply.OrigTimeSec, reply.OrigTimeFrac); echoed != nonce {
		return NtpSample{}, newQueryError(KindMismatch, server, fmt.Errorf("originate timestamp mismatch"))
	}
	if reply.TxTimeSec == 0 && reply.TxTimeFrac == 0 {
		return NtpSample{}, newQueryError(KindKoD, server, fmt.Errorf("zero transmit timestamp"))
	}

	// T2 and T3 are the server's receive/transmit times, relative to the
	// same NTP epoch; T1 is defined as zero because the request carried a
	// nonce instead of a wall-clock stamp, and only differences matter for
	// the offset/RTT formulae (spec §4.1 step 5).
	t2 := ntp.UnixMilli(reply.RxTimeSec, reply.RxTimeFrac)
	t3 := ntp.UnixMilli(reply.TxTimeSec, reply.TxTimeFrac)
	roundTrip := sinceMs(tSend, tRecv)

	rttMS := roundTrip - (t3 - t2)
	if rttMS < 0 {
		return NtpSample{}, newQueryError(KindProtocol, server, fmt.Errorf("negative round trip time %dms", rttMS))
	}
	offsetMS := (t2 + (t3 - rttMS)) / 2

	// server_epoch_ms: the server's transmit time corrected forward by half
	// of the leg between its transmission and our reception.
	serverEpochMS := t3 + rttMS/2

	return NtpSample{
		ServerKey:     server,
		TSend:         tSend,
		TRecv:         tRecv,
		OffsetMS:      offsetMS,
		RTTMS:         rttMS,
		ServerEpochMS: uint64(serverEpochMS),
	}, nil
}
