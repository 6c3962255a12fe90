/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package transfer implements the HTTP/1.1 transfer-encoding decode and
// encode state machines of spec.md §4.2, operating purely over byte slices
// (no I/O of their own — the dispatcher owns the buffers).
package transfer

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrMalformedChunk is returned when a chunked body's size line is not
// valid hex, or declares a size exceeding maxChunkSize (2^63-1, spec.md
// §4.2).
var ErrMalformedChunk = errors.New("transfer: malformed chunk size")

const maxChunkSize = 1<<63 - 1

// Decoder is the sum type {Eof, Length, Chunked} of spec.md §3/§4.2. It
// consumes from a read buffer's byte slice and yields body data, reporting
// how many input bytes it consumed per call.
type Decoder interface {
	// Decode consumes a prefix of buf and returns the body bytes produced
	// (a subslice of buf, valid only until the caller's next buffer
	// mutation), the number of bytes of buf consumed, whether the body has
	// reached EOF, and any error.
	Decode(buf []byte) (data []byte, consumed int, eof bool, err error)
	// IsEOF reports whether the decoder has already reached end of body.
	IsEOF() bool
}

// NewEOFDecoder returns a decoder that immediately reports EOF and
// consumes nothing — used for methods/responses with no declared body.
func NewEOFDecoder() Decoder { return &eofDecoder{} }

type eofDecoder struct{}

func (d *eofDecoder) Decode(buf []byte) ([]byte, int, bool, error) { return nil, 0, true, nil }
func (d *eofDecoder) IsEOF() bool                                  { return true }

// NewLengthDecoder returns a decoder for a Content-Length-framed body of n
// bytes.
func NewLengthDecoder(n uint64) Decoder { return &lengthDecoder{remaining: n} }

type lengthDecoder struct {
	remaining uint64
}

func (d *lengthDecoder) IsEOF() bool { return d.remaining == 0 }

func (d *lengthDecoder) Decode(buf []byte) ([]byte, int, bool, error) {
	if d.remaining == 0 {
		return nil, 0, true, nil
	}
	n := uint64(len(buf))
	if n > d.remaining {
		n = d.remaining
	}
	d.remaining -= n
	return buf[:n], int(n), d.remaining == 0, nil
}

type chunkPhase int

const (
	phaseSize chunkPhase = iota
	phaseData
	phaseDataCRLF
	phaseTrailer
	phaseDone
)

// NewChunkedDecoder returns a decoder for a chunked-transfer-coding body:
// "hex CRLF data CRLF ... 0 CRLF [trailers] CRLF". Trailers are consumed
// and discarded, per spec.md §4.2.
func NewChunkedDecoder() Decoder { return &chunkedDecoder{} }

type chunkedDecoder struct {
	phase     chunkPhase
	chunkLeft uint64
	sizeBuf   []byte
}

func (d *chunkedDecoder) IsEOF() bool { return d.phase == phaseDone }

func (d *chunkedDecoder) Decode(buf []byte) ([]byte, int, bool, error) {
	total := 0
	for {
		switch d.phase {
		case phaseDone:
			return nil, total, true, nil

		case phaseSize:
			i := bytes.IndexByte(buf[total:], '\n')
			if i < 0 {
				d.sizeBuf = append(d.sizeBuf, buf[total:]...)
				return nil, len(buf), false, nil
			}
			line := append(d.sizeBuf, buf[total:total+i]...)
			total += i + 1
			d.sizeBuf = nil
			line = bytes.TrimRight(line, "\r")
			if ext := bytes.IndexByte(line, ';'); ext >= 0 {
				line = line[:ext]
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				return nil, total, false, ErrMalformedChunk
			}
			size, err := strconv.ParseUint(string(line), 16, 64)
			if err != nil || size > maxChunkSize {
				return nil, total, false, ErrMalformedChunk
			}
			d.chunkLeft = size
			if size == 0 {
				d.phase = phaseTrailer
			} else {
				d.phase = phaseData
			}

		case phaseData:
			avail := uint64(len(buf) - total)
			if avail == 0 {
				return nil, total, false, nil
			}
			n := d.chunkLeft
			if avail < n {
				n = avail
			}
			data := buf[total : total+int(n)]
			total += int(n)
			d.chunkLeft -= n
			if d.chunkLeft == 0 {
				d.phase = phaseDataCRLF
			}
			return data, total, false, nil

		case phaseDataCRLF:
			need := 2
			avail := len(buf) - total
			if avail < need {
				return nil, total, false, nil
			}
			total += need
			d.phase = phaseSize

		case phaseTrailer:
			i := bytes.IndexByte(buf[total:], '\n')
			if i < 0 {
				return nil, len(buf), false, nil
			}
			line := bytes.TrimRight(buf[total:total+i], "\r")
			total += i + 1
			if len(line) == 0 {
				d.phase = phaseDone
				return nil, total, true, nil
			}
			// non-empty trailer line: consumed and discarded, loop for more.
		}
	}
}
