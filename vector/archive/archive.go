// Package archive loads and saves the precomputed agent-vectors archive
// described by spec §6.6: two parallel arrays, agent_ids[] (strings) and
// vectors[N][D] (float32), stored as a small binary file so production
// deployments can skip loading an embeddings model entirely.
//
// The on-disk layout is intentionally minimal (a length-prefixed id list
// followed by a flat float32 matrix) rather than a general-purpose
// serialization format: the archive has exactly two arrays with a known
// shape, and generic encoders (gob, protobuf) would add framing overhead
// and a decode-time dependency for no benefit over direct binary.Write.
package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/resonantlabs/negotiator/toolerrors"
	"github.com/resonantlabs/negotiator/vector"
)

const magic uint32 = 0x41474e54 // "AGNT"

// Archive is the decoded precomputed-vectors file: parallel agent_ids and
// vectors arrays.
type Archive struct {
	AgentIDs []string
	Vectors  []vector.Vector
	Dim      int
}

// Save writes the archive to path in the format described by spec §6.6.
func Save(path string, ids []string, vectors []vector.Vector) error {
	if len(ids) != len(vectors) {
		return toolerrors.NewConfigError("agent_ids and vectors length mismatch", toolerrors.Context{}, nil)
	}
	dim := 0
	if len(vectors) > 0 {
		dim = vectors[0].Dim()
	}
	f, err := os.Create(path)
	if err != nil {
		return toolerrors.NewConfigError("cannot create archive file", toolerrors.Context{}, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dim)); err != nil {
		return err
	}
	for _, id := range ids {
		b := []byte(id)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	for _, v := range vectors {
		if v.Dim() != dim {
			return toolerrors.NewConfigError("vectors do not share a common dimension", toolerrors.Context{}, nil)
		}
		for _, x := range v {
			if err := binary.Write(w, binary.LittleEndian, float32(x)); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// Load reads the archive at path and validates that agent_ids and vectors
// have matching lengths and that every vector matches expectedDim (when
// expectedDim > 0, typically the configured Encoder's dimension).
func Load(path string, expectedDim int) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, toolerrors.NewConfigError("cannot open precomputed-vectors archive", toolerrors.Context{}, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var gotMagic, n, dim uint32
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil {
		return nil, malformed(err)
	}
	if gotMagic != magic {
		return nil, toolerrors.NewConfigError("precomputed-vectors archive has an invalid header", toolerrors.Context{}, nil)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, malformed(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, malformed(err)
	}
	if expectedDim > 0 && int(dim) != expectedDim {
		return nil, toolerrors.NewConfigError(
			fmt.Sprintf("archive dimension %d does not match encoder dimension %d", dim, expectedDim),
			toolerrors.Context{}, nil)
	}

	ids := make([]string, n)
	for i := range ids {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, malformed(err)
		}
		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, malformed(err)
		}
		ids[i] = string(b)
	}

	vectors := make([]vector.Vector, n)
	for i := range vectors {
		v := make(vector.Vector, dim)
		for j := range v {
			var f32 float32
			if err := binary.Read(r, binary.LittleEndian, &f32); err != nil {
				return nil, malformed(err)
			}
			v[j] = float64(f32)
		}
		vectors[i] = v
	}

	if len(ids) != len(vectors) {
		return nil, toolerrors.NewConfigError("archive agent_ids and vectors length mismatch", toolerrors.Context{}, nil)
	}
	return &Archive{AgentIDs: ids, Vectors: vectors, Dim: int(dim)}, nil
}

// ToMap converts the archive into the agent_id → Vector map the
// Negotiation Engine expects.
func (a *Archive) ToMap() map[string]vector.Vector {
	out := make(map[string]vector.Vector, len(a.AgentIDs))
	for i, id := range a.AgentIDs {
		out[id] = a.Vectors[i]
	}
	return out
}

func malformed(cause error) error {
	return toolerrors.NewConfigError("malformed precomputed-vectors archive", toolerrors.Context{}, cause)
}
