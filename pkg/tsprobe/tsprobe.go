// Package tsprobe sniffs a byte prefix for the MPEG-2 transport stream sync
// pattern, the legacy-HLS counterpart to the fmp4 box sniffing in
// pkg/chunkparser.
package tsprobe

// PacketSize is the fixed size of an MPEG-TS packet.
const PacketSize = 188

// syncByte is the fixed first byte of every MPEG-TS packet.
const syncByte = 0x47

// minSyncPackets is how many consecutive sync bytes at PacketSize stride we
// require before declaring the prefix a transport stream; one is not enough
// to rule out a coincidental 0x47 in another container.
const minSyncPackets = 3

// Looks reports whether buf looks like the start of an MPEG-TS stream: at
// least minSyncPackets consecutive packets each starting with syncByte.
func Looks(buf []byte) bool {
	if len(buf) < PacketSize {
		return false
	}
	count := 0
	for off := 0; off+1 <= len(buf); off += PacketSize {
		if buf[off] != syncByte {
			break
		}
		count++
		if count >= minSyncPackets {
			return true
		}
		if off+PacketSize > len(buf) {
			break
		}
	}
	return false
}
