package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

const (
	magicBytes = "CHROUTER"
	version    = uint32(1)
	maxNodes   = 50_000_000
	maxEdges   = 200_000_000
)

var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrChecksum           = errors.New("checksum mismatch")
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic        [8]byte
	Version      uint32
	NumNodes     uint32
	NumEdges     uint32
	NumShortcuts uint32
}

// WriteBinary serializes the graph, shortcuts and levels included.
// The file is written to a temp path and renamed into place.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	hdr := fileHeader{
		Version:      version,
		NumNodes:     uint32(g.NumNodes()),
		NumEdges:     uint32(g.NumEdges()),
		NumShortcuts: uint32(g.NumShortcuts()),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	columns := []struct {
		name string
		data []byte
	}{
		{"lat", bytesOf(g.lat, 8)},
		{"lon", bytesOf(g.lon, 8)},
		{"level", bytesOf(g.level, 4)},
		{"base", bytesOf(g.base, 4)},
		{"head", bytesOf(g.head, 4)},
		{"weight", bytesOf(g.weight, 8)},
		{"flags", bytesOf(g.flags, 4)},
		{"skip1", bytesOf(g.skip1, 4)},
		{"skip2", bytesOf(g.skip2, 4)},
	}
	for _, c := range columns {
		if _, err := w.Write(c.data); err != nil {
			return fmt.Errorf("write %s: %w", c.name, err)
		}
	}

	// CRC32 trailer.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary loads a graph written by WriteBinary. Adjacency lists are
// rebuilt in edge id order, so iteration order matches the writer's.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	if hdr.NumEdges > maxEdges || hdr.NumShortcuts > hdr.NumEdges {
		return nil, fmt.Errorf("edge count %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}

	n, m := int(hdr.NumNodes), int(hdr.NumEdges)
	g := &Graph{
		lat:    make([]float64, n),
		lon:    make([]float64, n),
		level:  make([]int32, n),
		adj:    make([][]EdgeID, n),
		base:   make([]uint32, m),
		head:   make([]uint32, m),
		weight: make([]float64, m),
		flags:  make([]Flags, m),
		skip1:  make([]EdgeID, m),
		skip2:  make([]EdgeID, m),
	}
	columns := []struct {
		name string
		data []byte
	}{
		{"lat", bytesOf(g.lat, 8)},
		{"lon", bytesOf(g.lon, 8)},
		{"level", bytesOf(g.level, 4)},
		{"base", bytesOf(g.base, 4)},
		{"head", bytesOf(g.head, 4)},
		{"weight", bytesOf(g.weight, 8)},
		{"flags", bytesOf(g.flags, 4)},
		{"skip1", bytesOf(g.skip1, 4)},
		{"skip2", bytesOf(g.skip2, 4)},
	}
	for _, c := range columns {
		if _, err := io.ReadFull(r, c.data); err != nil {
			return nil, fmt.Errorf("read %s: %w", c.name, err)
		}
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("%w: stored=%08x computed=%08x", ErrChecksum, storedCRC, expectedCRC)
	}

	if err := g.rebuildAdjacency(int(hdr.NumShortcuts)); err != nil {
		return nil, err
	}
	return g, nil
}

// rebuildAdjacency validates edge endpoints, weights and skip references and fills
// the per-node incidence lists.
func (g *Graph) rebuildAdjacency(wantShortcuts int) error {
	n := uint32(len(g.level))
	degree := make([]int, n)
	for id := range g.head {
		b, h := g.base[id], g.head[id]
		if b >= n || h >= n {
			return fmt.Errorf("%w: edge %d endpoints %d->%d, %d nodes", ErrStorageInconsistency, id, b, h, n)
		}
		if !validWeight(g.weight[id]) {
			return fmt.Errorf("%w: edge %d weight %v", ErrStorageInconsistency, id, g.weight[id])
		}
		degree[b]++
		if h != b {
			degree[h]++
		}
		if s1, s2 := g.skip1[id], g.skip2[id]; s1 != NoEdge {
			if s1 < 0 || s2 < 0 || int(s1) >= id || int(s2) >= id {
				return fmt.Errorf("%w: shortcut %d skips %d, %d", ErrStorageInconsistency, id, s1, s2)
			}
			g.numScut++
		}
	}
	if g.numScut != wantShortcuts {
		return fmt.Errorf("%w: header says %d shortcuts, found %d", ErrStorageInconsistency, wantShortcuts, g.numScut)
	}
	for i := range g.adj {
		g.adj[i] = make([]EdgeID, 0, degree[i])
	}
	for id := range g.head {
		b, h := g.base[id], g.head[id]
		g.adj[b] = append(g.adj[b], EdgeID(id))
		if h != b {
			g.adj[h] = append(g.adj[h], EdgeID(id))
		}
	}
	return nil
}

// bytesOf views a slice of fixed-size values as raw bytes without copying.
func bytesOf[T ~int32 | ~uint32 | ~float64](s []T, size int) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size)
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
