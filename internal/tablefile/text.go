package tablefile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/hailam/magicgen/internal/magic"
)

// WriteText writes a human-readable dump of set: four bracketed,
// comma-separated lists (Magics, Masks, RelevantBits and the nested
// Attacks), one item per square in ascending order. The dump is meant
// for inspection and pasting into source; use Write for persistence.
func WriteText(w io.Writer, set *magic.Set) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	list := func(name string, item func(e *magic.Entry)) {
		bw.WriteString(name)
		bw.WriteString(": [")
		for i, e := range set.Entries {
			if i > 0 {
				bw.WriteString(", ")
			}
			item(e)
		}
		bw.WriteString("]\n")
	}

	list("Magics", func(e *magic.Entry) {
		bw.WriteString(hex(e.Magic))
	})
	list("Masks", func(e *magic.Entry) {
		bw.WriteString(hex(uint64(e.Mask)))
	})
	list("RelevantBits", func(e *magic.Entry) {
		bw.WriteString(strconv.Itoa(int(e.Bits)))
	})
	list("Attacks", func(e *magic.Entry) {
		bw.WriteByte('[')
		for i, bb := range e.Table {
			if i > 0 {
				bw.WriteString(", ")
			}
			bw.WriteString(hex(uint64(bb)))
		}
		bw.WriteByte(']')
	})

	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteTextFile writes the text dump of set to path atomically.
func WriteTextFile(path string, set *magic.Set) (int64, error) {
	return writeAtomic(path, func(w io.Writer) (int64, error) {
		return WriteText(w, set)
	})
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%016x", v)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
