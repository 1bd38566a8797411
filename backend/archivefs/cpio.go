package archivefs

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"
)

var zeroTime time.Time

// readCPIO decodes the "new ASCII" (newc/SVR4) CPIO format: no library
// for CPIO exists anywhere in the pack, and the stdlib carries no
// archive/cpio package either, so this is a from-scratch minimal reader
// covering the one variant modern Linux initramfs images use.
func readCPIO(raw []byte) (*node, error) {
	const (
		magic      = "070701"
		headerSize = 110
		trailer    = "TRAILER!!!"
	)

	root := newRoot()
	r := bytes.NewReader(raw)

	for {
		header := make([]byte, headerSize)
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		if string(header[:6]) != magic {
			return nil, fmt.Errorf("cpio: bad magic %q", header[:6])
		}

		fileSize, err := parseHex(header[54:62])
		if err != nil {
			return nil, fmt.Errorf("cpio: file size: %w", err)
		}
		mode, err := parseHex(header[14:22])
		if err != nil {
			return nil, fmt.Errorf("cpio: mode: %w", err)
		}
		nameSize, err := parseHex(header[94:102])
		if err != nil {
			return nil, fmt.Errorf("cpio: name size: %w", err)
		}

		nameBuf := make([]byte, nameSize)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, err
		}
		name := string(bytes.TrimRight(nameBuf, "\x00"))
		if err := skipPad(r); err != nil {
			return nil, err
		}

		if name == trailer {
			break
		}

		data := make([]byte, fileSize)
		if fileSize > 0 {
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, err
			}
		}
		if err := skipPad(r); err != nil {
			return nil, err
		}

		const s_ifdir = 0o040000
		isDir := mode&0o170000 == s_ifdir
		insert(root, name, isDir, data, zeroTime)
	}
	return root, nil
}

func parseHex(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 16, 64)
}

// skipPad discards padding so the next read starts on a 4-byte boundary
// measured from the start of the archive, as newc format requires.
func skipPad(r *bytes.Reader) error {
	pos := int(r.Size()) - r.Len()
	pad := (4 - pos%4) % 4
	if pad == 0 {
		return nil
	}
	_, err := r.Seek(int64(pad), io.SeekCurrent)
	return err
}
