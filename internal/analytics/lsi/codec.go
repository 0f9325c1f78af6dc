package lsi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// FileName is the projection's name inside a snapshot directory.
const FileName = "projection.bin"

const projectionMagic uint32 = 0x4c534931

// Encode writes p as a little-endian header (magic, docs, k) followed by the
// singular values and the row-major coordinates, all float64.
func Encode(w io.Writer, p *Projection) error {
	n, k := p.Dims()
	bw := bufio.NewWriter(w)
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], projectionMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(n))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(k))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing projection header: %w", err)
	}
	var buf [8]byte
	put := func(f float64) error {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, err := bw.Write(buf[:])
		return err
	}
	for _, s := range p.Singular {
		if err := put(s); err != nil {
			return fmt.Errorf("writing singular values: %w", err)
		}
	}
	for i := range n {
		for _, f := range p.Rows.RawRowView(i) {
			if err := put(f); err != nil {
				return fmt.Errorf("writing projection rows: %w", err)
			}
		}
	}
	return bw.Flush()
}

// Decode reads a projection written by Encode.
func Decode(r io.Reader) (*Projection, error) {
	br := bufio.NewReader(r)
	var hdr [12]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading projection header: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(hdr[0:4]); magic != projectionMagic {
		return nil, apperrors.Consistencyf("invalid projection file: bad magic %x", magic)
	}
	n := int(binary.LittleEndian.Uint32(hdr[4:8]))
	k := int(binary.LittleEndian.Uint32(hdr[8:12]))
	if n == 0 || k == 0 {
		return nil, apperrors.Consistencyf("projection has zero dimension (%dx%d)", n, k)
	}
	values := make([]float64, k)
	data := make([]float64, n*k)
	var buf [8]byte
	for _, dst := range [][]float64{values, data} {
		for i := range dst {
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, fmt.Errorf("reading projection body: %w", err)
			}
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
		}
	}
	return &Projection{Rows: mat.NewDense(n, k, data), Singular: values}, nil
}
