package pdwire

import "hash/crc32"

// computeFCS calculates the CRC32/IEEE-802.3 over the first HeaderSize-fcsSize
// bytes of a marshalled header. The caller supplies the full header buffer;
// the trailing FCS bytes are excluded from the sum, per spec.
func computeFCS(headerBuf []byte) uint32 {
	return crc32.ChecksumIEEE(headerBuf[:HeaderSize-fcsSize])
}
