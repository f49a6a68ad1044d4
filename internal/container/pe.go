package container

import (
	"crypto"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"io"
)

// WIN_CERTIFICATE layout (Microsoft PE format, "The Attribute Certificate
// Table").
const (
	winCertHeaderSize         = 8
	winCertTypePKCSSignedData = 0x0002
	winCertAlignment          = 8
	securityDirectory         = pe.IMAGE_DIRECTORY_ENTRY_SECURITY
	dosMagic                  = "MZ"
)

// Offsets into the PE headers, relative to the start of the optional header
// unless noted.
const (
	peHeaderOffset      = 0x3c // e_lfanew, from the start of the file
	peOptionalHeader    = 4 + 20
	peChecksumOffset    = 64
	peDataDirectories32 = 96
	peDataDirectories64 = 112
	peDataDirectorySize = 8
	peMagic32           = 0x10b
	peMagic64           = 0x20b
)

// peLayout locates the parts of a PE image the Authenticode digest skips.
type peLayout struct {
	checksum    int64
	securityDir int64
	table       int64
	tableSize   int64
}

// readPELayout parses the headers of the PE image in r and locates its
// attribute certificate table.
func readPELayout(r io.ReaderAt, size int64) (peLayout, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return peLayout{}, wrapError(CodeMalformed, "reading PE headers", err)
	}

	var dirs []pe.DataDirectory
	var count uint32
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs, count = oh.DataDirectory[:], oh.NumberOfRvaAndSizes
	case *pe.OptionalHeader64:
		dirs, count = oh.DataDirectory[:], oh.NumberOfRvaAndSizes
	default:
		return peLayout{}, newError(CodeNotSigned, "PE file has no optional header")
	}
	if count <= securityDirectory {
		return peLayout{}, newError(CodeNotSigned, "PE file has no security directory")
	}

	// The security directory address is a file offset, not an RVA.
	dir := dirs[securityDirectory]
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return peLayout{}, newError(CodeNotSigned, "PE file has an empty security directory")
	}
	l := peLayout{table: int64(dir.VirtualAddress), tableSize: int64(dir.Size)}
	if l.table+l.tableSize > size {
		return peLayout{}, newError(CodeMalformed,
			fmt.Sprintf("certificate table [%d, %d) extends past end of file (%d bytes)", l.table, l.table+l.tableSize, size))
	}

	var buf [4]byte
	if _, err := r.ReadAt(buf[:], peHeaderOffset); err != nil {
		return peLayout{}, wrapError(CodeIO, "reading PE header offset", err)
	}
	optional := int64(binary.LittleEndian.Uint32(buf[:])) + peOptionalHeader
	if _, err := r.ReadAt(buf[:2], optional); err != nil {
		return peLayout{}, wrapError(CodeIO, "reading optional header magic", err)
	}
	l.checksum = optional + peChecksumOffset
	switch binary.LittleEndian.Uint16(buf[:2]) {
	case peMagic32:
		l.securityDir = optional + peDataDirectories32 + securityDirectory*peDataDirectorySize
	case peMagic64:
		l.securityDir = optional + peDataDirectories64 + securityDirectory*peDataDirectorySize
	default:
		return peLayout{}, newError(CodeMalformed, "unrecognized optional header magic")
	}
	if l.table < l.securityDir+peDataDirectorySize {
		return peLayout{}, newError(CodeMalformed,
			fmt.Sprintf("certificate table at %d overlaps the PE headers", l.table))
	}
	return l, nil
}

// peSignatureBlock returns the first PKCS #7 SignedData block from the
// attribute certificate table of the PE image in r.
func peSignatureBlock(r io.ReaderAt, size, maxSignatureSize int64) ([]byte, error) {
	l, err := readPELayout(r, size)
	if err != nil {
		return nil, err
	}
	if l.tableSize > maxSignatureSize {
		return nil, newError(CodeMalformed,
			fmt.Sprintf("certificate table of %d bytes exceeds limit of %d", l.tableSize, maxSignatureSize))
	}

	table := make([]byte, l.tableSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, l.table, l.tableSize), table); err != nil {
		return nil, wrapError(CodeIO, "reading certificate table", err)
	}
	return firstSignedData(table)
}

// imageDigest hashes the PE image the way Authenticode does: everything but
// the CheckSum field, the security directory entry and the certificate table.
func imageDigest(r io.ReaderAt, size int64, l peLayout, h crypto.Hash) ([]byte, error) {
	w := h.New()
	ranges := [][2]int64{
		{0, l.checksum},
		{l.checksum + 4, l.securityDir},
		{l.securityDir + peDataDirectorySize, l.table},
		{l.table + l.tableSize, size},
	}
	for _, rg := range ranges {
		if _, err := io.Copy(w, io.NewSectionReader(r, rg[0], rg[1]-rg[0])); err != nil {
			return nil, wrapError(CodeIO, "hashing PE image", err)
		}
	}
	return w.Sum(nil), nil
}

// firstSignedData walks the WIN_CERTIFICATE entries of table and returns the
// payload of the first PKCS_SIGNED_DATA entry.
func firstSignedData(table []byte) ([]byte, error) {
	for pos := 0; pos+winCertHeaderSize <= len(table); {
		length := int(binary.LittleEndian.Uint32(table[pos:]))
		certType := binary.LittleEndian.Uint16(table[pos+6:])
		if length < winCertHeaderSize || length > len(table)-pos {
			return nil, newError(CodeMalformed,
				fmt.Sprintf("WIN_CERTIFICATE at %d has invalid length %d", pos, length))
		}
		if certType == winCertTypePKCSSignedData {
			return table[pos+winCertHeaderSize : pos+length], nil
		}
		pos += (length + winCertAlignment - 1) &^ (winCertAlignment - 1)
	}
	return nil, newError(CodeNotSigned, "certificate table holds no PKCS #7 signature")
}
