package timecapsule

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goerrors "github.com/gruntwork-io/go-commons/errors"
)

// MaxRecordBody bounds the body of one archived event.
const MaxRecordBody = 1 << 20

var magic = []byte("orbitcap")

// ErrNotArchive is returned when a stream does not start with the archive
// magic.
var ErrNotArchive = errors.New("not a timecapsule archive")

// Record is one archived event. The type is stored as its URI so an
// archive can be read back by a host with a different URID table.
type Record struct {
	Beats float64
	URI   string
	Body  []byte
}

// Writer appends records to a gzip compressed archive.
type Writer struct {
	zw     *gzip.Writer
	closer io.Closer
	buf    []byte
}

// NewWriter starts an archive on w.
func NewWriter(w io.Writer) (*Writer, error) {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, goerrors.WithStackTrace(err)
	}
	if _, err := zw.Write(magic); err != nil {
		return nil, goerrors.WithStackTraceAndPrefix(err, "writing archive header")
	}
	return &Writer{zw: zw}, nil
}

// Create truncates path and starts an archive in it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, goerrors.WithStackTrace(err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

func (w *Writer) Write(rec Record) error {
	if len(rec.URI) == 0 || len(rec.URI) > math.MaxUint16 {
		return goerrors.WithStackTrace(fmt.Errorf("record type URI of %d bytes cannot be archived", len(rec.URI)))
	}
	if len(rec.Body) > MaxRecordBody {
		return goerrors.WithStackTrace(fmt.Errorf("record body of %d bytes exceeds %d", len(rec.Body), MaxRecordBody))
	}

	var head [10]byte
	binary.BigEndian.PutUint64(head[0:8], math.Float64bits(rec.Beats))
	binary.BigEndian.PutUint16(head[8:10], uint16(len(rec.URI)))
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(rec.Body)))

	b := append(w.buf[:0], head[:]...)
	b = append(b, rec.URI...)
	b = append(b, size[:]...)
	b = append(b, rec.Body...)
	w.buf = b

	if _, err := w.zw.Write(b); err != nil {
		return goerrors.WithStackTraceAndPrefix(err, "writing record")
	}
	return nil
}

// Flush pushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.zw.Flush(); err != nil {
		return goerrors.WithStackTrace(err)
	}
	return nil
}

func (w *Writer) Close() error {
	err := w.zw.Close()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return goerrors.WithStackTrace(err)
	}
	return nil
}

// Reader reads records back in the order they were written.
type Reader struct {
	zr     *gzip.Reader
	closer io.Closer
	head   [10]byte
	uri    []byte
	body   []byte
}

// NewReader checks the archive header on r.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, goerrors.WithStackTraceAndPrefix(err, "opening archive")
	}
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(zr, head); err != nil || !bytes.Equal(head, magic) {
		return nil, goerrors.WithStackTrace(ErrNotArchive)
	}
	return &Reader{zr: zr}, nil
}

// Open opens the archive stored at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerrors.WithStackTrace(err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Next returns the next record, or io.EOF after the last one. The body is
// only valid until the following call.
func (r *Reader) Next() (Record, error) {
	if _, err := io.ReadFull(r.zr, r.head[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, goerrors.WithStackTraceAndPrefix(err, "reading record header")
	}
	beats := math.Float64frombits(binary.BigEndian.Uint64(r.head[0:8]))
	n := int(binary.BigEndian.Uint16(r.head[8:10]))

	r.uri = grow(r.uri, n)
	if _, err := io.ReadFull(r.zr, r.uri); err != nil {
		return Record{}, goerrors.WithStackTraceAndPrefix(err, "reading record type")
	}

	var size [4]byte
	if _, err := io.ReadFull(r.zr, size[:]); err != nil {
		return Record{}, goerrors.WithStackTraceAndPrefix(err, "reading record size")
	}
	m := binary.BigEndian.Uint32(size[:])
	if m > MaxRecordBody {
		return Record{}, goerrors.WithStackTrace(fmt.Errorf("record body of %d bytes exceeds %d", m, MaxRecordBody))
	}
	r.body = grow(r.body, int(m))
	if _, err := io.ReadFull(r.zr, r.body); err != nil {
		return Record{}, goerrors.WithStackTraceAndPrefix(err, "reading record body")
	}

	return Record{Beats: beats, URI: string(r.uri), Body: r.body}, nil
}

func (r *Reader) Close() error {
	err := r.zr.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return goerrors.WithStackTrace(err)
	}
	return nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
