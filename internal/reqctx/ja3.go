// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reqctx

import (
	"encoding/hex"

	"github.com/dreadl0ck/ja3"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// emptyJA3 is md5("") — DigestPacket returns this for a packet carrying no
// ClientHello, and it must never be surfaced as a real fingerprint.
const emptyJA3 = "d41d8cd98f00b204e9800998ecf8427e"

// JA3FromClientHello computes the JA3 MD5 fingerprint of a raw TLS
// ClientHello captured in packet. The production edge runtime computes
// this during the TLS handshake and hands the core a pre-resolved ja3
// field (§4.1); this helper exists only for test fixtures that supply a
// raw packet capture instead, adapted from the teacher's
// internal/scanner.ExtractTLS.
func JA3FromClientHello(packet gopacket.Packet) (string, bool) {
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return "", false
	}
	tcp, ok := tcpLayer.(*layers.TCP)
	if !ok {
		return "", false
	}
	payload := tcp.Payload
	if len(payload) < 6 {
		return "", false
	}
	if payload[0] != 0x16 || payload[5] != 0x01 {
		return "", false
	}

	digest := ja3.DigestPacket(packet)
	hash := hex.EncodeToString(digest[:])
	if hash == emptyJA3 {
		return "", false
	}
	return hash, true
}
