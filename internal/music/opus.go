package music

import (
	"bufio"
	"io"
)

// oggPacketReader pulls raw opus packets out of an ogg container produced by
// ffmpeg. OpusHead and OpusTags pages are skipped; only audio packets come
// out of NextPacket.
type oggPacketReader struct {
	reader  *bufio.Reader
	pending [][]byte
	partial []byte // unterminated packet carried over from the previous page
}

func newOggPacketReader(r io.Reader) *oggPacketReader {
	return &oggPacketReader{reader: bufio.NewReaderSize(r, 65536)}
}

// NextPacket returns the next opus audio packet, or io.EOF when the
// container ends.
func (o *oggPacketReader) NextPacket() ([]byte, error) {
	for len(o.pending) == 0 {
		packets, isHeader, err := o.readPage()
		if err != nil {
			return nil, err
		}
		if isHeader {
			continue
		}
		o.pending = packets
	}

	packet := o.pending[0]
	o.pending = o.pending[1:]
	return packet, nil
}

func (o *oggPacketReader) readPage() ([][]byte, bool, error) {
	if err := o.syncToPage(); err != nil {
		return nil, false, err
	}

	headerRest := make([]byte, 23)
	if _, err := io.ReadFull(o.reader, headerRest); err != nil {
		return nil, false, err
	}

	headerType := headerRest[1]
	pageSegments := headerRest[22]

	segmentTable := make([]byte, pageSegments)
	if _, err := io.ReadFull(o.reader, segmentTable); err != nil {
		return nil, false, err
	}

	pageSize := 0
	for _, seg := range segmentTable {
		pageSize += int(seg)
	}

	pageData := make([]byte, pageSize)
	if _, err := io.ReadFull(o.reader, pageData); err != nil {
		return nil, false, err
	}

	isHeader := headerType&0x02 != 0
	if len(pageData) >= 8 {
		magic := string(pageData[:8])
		if magic == "OpusHead" || magic == "OpusTags" {
			isHeader = true
		}
	}
	if isHeader {
		o.partial = nil
		return nil, true, nil
	}

	continued := headerType&0x01 != 0
	partial := o.partial
	o.partial = nil
	if !continued {
		partial = nil
	} else if partial == nil {
		// synced mid-stream onto a continuation whose start we never saw;
		// drop segments up to and including the orphan's terminator
		trim, n := 0, 0
		for n < len(segmentTable) {
			trim += int(segmentTable[n])
			n++
			if segmentTable[n-1] < 255 {
				break
			}
		}
		segmentTable = segmentTable[n:]
		if trim > len(pageData) {
			trim = len(pageData)
		}
		pageData = pageData[trim:]
	}

	packets, rem := splitPagePackets(partial, segmentTable, pageData)
	o.partial = rem
	return packets, false, nil
}

// syncToPage scans forward to the next "OggS" capture pattern, tolerating
// garbage between pages.
func (o *oggPacketReader) syncToPage() error {
	for {
		b, err := o.reader.ReadByte()
		if err != nil {
			return err
		}
		if b != 'O' {
			continue
		}

		peek, err := o.reader.Peek(3)
		if err != nil {
			return err
		}
		if string(peek) == "ggS" {
			o.reader.Discard(3)
			return nil
		}
	}
}

// splitPagePackets reassembles packets from the lacing table. A segment of
// exactly 255 bytes continues into the next segment; anything shorter
// terminates the packet. A packet whose final lacing value is 255 spills
// into the next page and comes back as rem rather than a finished packet.
// partial seeds the first packet when this page continues the previous one.
func splitPagePackets(partial []byte, segmentTable []byte, pageData []byte) (packets [][]byte, rem []byte) {
	current := append([]byte(nil), partial...)
	offset := 0

	for _, segSize := range segmentTable {
		size := int(segSize)
		if offset+size > len(pageData) {
			break
		}

		current = append(current, pageData[offset:offset+size]...)
		offset += size

		if segSize < 255 {
			if len(current) > 0 {
				packet := make([]byte, len(current))
				copy(packet, current)
				packets = append(packets, packet)
			}
			current = current[:0]
		}
	}

	if len(current) > 0 {
		rem = make([]byte, len(current))
		copy(rem, current)
	}
	return packets, rem
}
