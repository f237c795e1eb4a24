package store

import (
	"encoding/json"
	"fmt"

	"github.com/devintel/devgraph/internal/models"
)

// nodeRow mirrors the nodes table. Attrs and embedding are stored as
// JSON so backends stay schema-compatible with each other.
type nodeRow struct {
	ID        string `db:"id"`
	Type      string `db:"type"`
	Attrs     []byte `db:"attrs"`
	Embedding []byte `db:"embedding"`
}

type edgeRow struct {
	Src      string `db:"src"`
	Dst      string `db:"dst"`
	Relation string `db:"rel"`
	Attrs    []byte `db:"attrs"`
}

func jsonVector(vec []float64) ([]byte, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return b, nil
}

func encodeNode(n *models.Node) (nodeRow, error) {
	attrs, err := json.Marshal(n.Attrs)
	if err != nil {
		return nodeRow{}, fmt.Errorf("encode node attrs: %w", err)
	}
	row := nodeRow{ID: n.ID, Type: string(n.Type), Attrs: attrs}
	if len(n.Embedding) > 0 {
		emb, err := json.Marshal(n.Embedding)
		if err != nil {
			return nodeRow{}, fmt.Errorf("encode node embedding: %w", err)
		}
		row.Embedding = emb
	}
	return row, nil
}

func decodeNode(r nodeRow) (*models.Node, error) {
	n := &models.Node{ID: r.ID, Type: models.NodeType(r.Type)}
	if len(r.Attrs) > 0 {
		if err := json.Unmarshal(r.Attrs, &n.Attrs); err != nil {
			return nil, fmt.Errorf("decode attrs for %s: %w", r.ID, err)
		}
	}
	if len(r.Embedding) > 0 {
		if err := json.Unmarshal(r.Embedding, &n.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", r.ID, err)
		}
	}
	return n, nil
}

func encodeEdge(e *models.Edge) (edgeRow, error) {
	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		return edgeRow{}, fmt.Errorf("encode edge attrs: %w", err)
	}
	return edgeRow{Src: e.Src, Dst: e.Dst, Relation: string(e.Relation), Attrs: attrs}, nil
}

func decodeEdge(r edgeRow) (*models.Edge, error) {
	e := &models.Edge{Src: r.Src, Dst: r.Dst, Relation: models.Relation(r.Relation)}
	if len(r.Attrs) > 0 {
		if err := json.Unmarshal(r.Attrs, &e.Attrs); err != nil {
			return nil, fmt.Errorf("decode attrs for %s->%s: %w", r.Src, r.Dst, err)
		}
	}
	return e, nil
}
