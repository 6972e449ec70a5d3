package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Offsets into the Word 97-2003 File Information Block.
const (
	fibFlagsOffset   = 0x000A
	fibCcpTextOffset = 0x004C
	fibFcClxOffset   = 0x01A2
	fibLcbClxOffset  = 0x01A6

	fibFlagEncrypted    = 0x0100
	fibFlagWhichTblStrm = 0x0200

	clxPrc  = 0x01
	clxPcdt = 0x02
)

// extractDOC reads the main document text of a legacy .doc file by walking
// the piece table stored in the table stream.
func extractDOC(content []byte) (string, error) {
	streams, err := readCompoundStreams(content, "WordDocument", "0Table", "1Table")
	if err != nil {
		return "", err
	}
	word := streams["WordDocument"]
	if len(word) < fibLcbClxOffset+4 {
		return "", fmt.Errorf("%w: doc: WordDocument stream missing or truncated", ErrExtractionFailed)
	}

	flags := binary.LittleEndian.Uint16(word[fibFlagsOffset:])
	if flags&fibFlagEncrypted != 0 {
		return "", fmt.Errorf("%w: doc: document is encrypted", ErrExtractionFailed)
	}
	tableName := "0Table"
	if flags&fibFlagWhichTblStrm != 0 {
		tableName = "1Table"
	}
	table := streams[tableName]

	ccpText := int(binary.LittleEndian.Uint32(word[fibCcpTextOffset:]))
	fcClx := int(binary.LittleEndian.Uint32(word[fibFcClxOffset:]))
	lcbClx := int(binary.LittleEndian.Uint32(word[fibLcbClxOffset:]))
	if lcbClx == 0 || fcClx+lcbClx > len(table) {
		return "", fmt.Errorf("%w: doc: piece table out of range", ErrExtractionFailed)
	}

	pieces, err := parsePieceTable(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}

	var b strings.Builder
	remaining := ccpText
	for _, p := range pieces {
		if remaining <= 0 {
			break
		}
		n := p.cpEnd - p.cpStart
		if n > remaining {
			n = remaining
		}
		text, err := p.decode(word, n)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		remaining -= n
	}
	return cleanWordText(b.String()), nil
}

type wordPiece struct {
	cpStart    int
	cpEnd      int
	fc         int
	compressed bool
}

func (p wordPiece) decode(word []byte, chars int) (string, error) {
	if p.compressed {
		start := p.fc / 2
		if start+chars > len(word) {
			return "", fmt.Errorf("%w: doc: text piece out of range", ErrExtractionFailed)
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(word[start : start+chars])
		if err != nil {
			return "", fmt.Errorf("%w: doc: decode cp1252: %v", ErrExtractionFailed, err)
		}
		return string(out), nil
	}
	end := p.fc + chars*2
	if end > len(word) {
		return "", fmt.Errorf("%w: doc: text piece out of range", ErrExtractionFailed)
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(word[p.fc:end])
	if err != nil {
		return "", fmt.Errorf("%w: doc: decode utf-16: %v", ErrExtractionFailed, err)
	}
	return string(out), nil
}

func parsePieceTable(clx []byte) ([]wordPiece, error) {
	i := 0
	for i < len(clx) && clx[i] == clxPrc {
		if i+3 > len(clx) {
			return nil, fmt.Errorf("%w: doc: truncated clx", ErrExtractionFailed)
		}
		size := int(int16(binary.LittleEndian.Uint16(clx[i+1:])))
		i += 3 + size
	}
	if i+5 > len(clx) || clx[i] != clxPcdt {
		return nil, fmt.Errorf("%w: doc: piece table descriptor not found", ErrExtractionFailed)
	}
	lcb := int(binary.LittleEndian.Uint32(clx[i+1:]))
	plc := clx[i+5:]
	if lcb > len(plc) || lcb < 4 {
		return nil, fmt.Errorf("%w: doc: truncated piece table", ErrExtractionFailed)
	}
	plc = plc[:lcb]
	n := (lcb - 4) / 12
	pieces := make([]wordPiece, 0, n)
	pcdBase := 4 * (n + 1)
	for k := 0; k < n; k++ {
		cpStart := int(binary.LittleEndian.Uint32(plc[4*k:]))
		cpEnd := int(binary.LittleEndian.Uint32(plc[4*(k+1):]))
		raw := binary.LittleEndian.Uint32(plc[pcdBase+8*k+2:])
		pieces = append(pieces, wordPiece{
			cpStart:    cpStart,
			cpEnd:      cpEnd,
			fc:         int(raw & 0x3FFFFFFF),
			compressed: raw&0x40000000 != 0,
		})
	}
	return pieces, nil
}

func readCompoundStreams(content []byte, names ...string) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: doc: not a compound file: %v", ErrExtractionFailed, err)
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make(map[string][]byte, len(names))
	for {
		entry, err := doc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: doc: read compound entry: %v", ErrExtractionFailed, err)
		}
		if !want[entry.Name] {
			continue
		}
		buf := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, buf); err != nil {
			return nil, fmt.Errorf("%w: doc: read %s: %v", ErrExtractionFailed, entry.Name, err)
		}
		out[entry.Name] = buf
	}
	return out, nil
}

// cleanWordText maps Word's control characters to plain whitespace and drops
// field markers.
func cleanWordText(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', 0x0B, 0x0C:
			return '\n'
		case 0x07:
			return '\t'
		case '\n', '\t':
			return r
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}
