// Package loader reads and writes hex memory images.
//
// An image is a stream of whitespace-separated tokens. A token of the form
// @XXXXXXXX (eight hex digits) sets the current load address; every other
// token is exactly two hex digits and is written as the next byte, advancing
// the address by one.
//
//	@00000000
//	13 05 a0 02 13 05 f0 0f
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sarchlab/tomasim/emu"
)

// ErrMalformedToken is the cause of every parse error.
var ErrMalformedToken = errors.New("malformed image token")

// Segment is a run of contiguous bytes.
type Segment struct {
	// Addr is the address of the first byte.
	Addr uint32
	// Data contains the segment contents.
	Data []byte
}

// Program represents a parsed memory image.
type Program struct {
	// EntryPoint is the address where execution begins. Images always start
	// at 0.
	EntryPoint uint32
	// Segments holds the image contents in file order.
	Segments []Segment
}

// FromBytes wraps a raw byte image placed at addr.
func FromBytes(addr uint32, data []byte) *Program {
	return &Program{Segments: []Segment{{Addr: addr, Data: data}}}
}

// Load reads an image file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	return prog, nil
}

// Parse reads an image from r.
func Parse(r io.Reader) (*Program, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	prog := &Program{}
	var cur *Segment
	addr := uint32(0)

	for index := 0; scanner.Scan(); index++ {
		tok := scanner.Text()

		if tok[0] == '@' {
			v, err := parseHex(tok[1:], 8)
			if err != nil {
				return nil, errors.Wrapf(err, "token %d %q", index, tok)
			}
			addr = uint32(v)
			cur = nil
			continue
		}

		v, err := parseHex(tok, 2)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d %q", index, tok)
		}

		if cur == nil {
			prog.Segments = append(prog.Segments, Segment{Addr: addr})
			cur = &prog.Segments[len(prog.Segments)-1]
		}
		cur.Data = append(cur.Data, byte(v))
		addr++
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading image")
	}

	return prog, nil
}

func parseHex(s string, digits int) (uint64, error) {
	if len(s) != digits {
		return 0, errors.Wrapf(ErrMalformedToken, "want %d hex digits", digits)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, errors.Wrap(ErrMalformedToken, err.Error())
	}

	return v, nil
}

// Size returns the number of bytes in all segments.
func (p *Program) Size() int {
	n := 0
	for _, s := range p.Segments {
		n += len(s.Data)
	}
	return n
}

// LoadInto copies every segment into mem.
func (p *Program) LoadInto(mem *emu.Memory) {
	for _, s := range p.Segments {
		mem.LoadProgram(s.Addr, s.Data)
	}
}

// WriteImage writes the program in image format, sixteen bytes per line.
func WriteImage(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)

	for _, s := range p.Segments {
		if _, err := fmt.Fprintf(bw, "@%08X\n", s.Addr); err != nil {
			return err
		}

		for i, b := range s.Data {
			sep := " "
			if i%16 == 15 || i == len(s.Data)-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprintf(bw, "%02X%s", b, sep); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}
