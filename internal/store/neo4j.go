package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/graph"
	"github.com/devintel/devgraph/internal/models"
)

// Neo4jStore implements Store on a Neo4j graph database. Nodes carry a
// single Entity label; the canonical id is the MERGE key.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logrus.Logger
}

// relation types are whitelisted because Cypher cannot parameterize a
// relationship type
var cypherRelations = map[models.Relation]string{
	models.RelContributedTo: string(models.RelContributedTo),
	models.RelSameAs:        string(models.RelSameAs),
	models.RelHasTag:        string(models.RelHasTag),
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, username, password, database string, logger *logrus.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}

	return &Neo4jStore{driver: driver, database: database, logger: logger}, nil
}

// Close closes the underlying driver.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// Load reads every Entity node and relation in two queries.
func (s *Neo4jStore) Load(ctx context.Context) (*graph.Graph, error) {
	g := graph.New()

	nodes, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MATCH (n:Entity) RETURN n.id AS id, n.type AS type, n.attrs AS attrs, n.embedding AS embedding`,
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("load nodes: %w", err))
	}

	for _, rec := range nodes.Records {
		n, err := nodeFromRecord(rec)
		if err != nil {
			s.logger.WithError(err).Warn("skipping undecodable node")
			continue
		}
		g.AddNode(n)
	}

	edges, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MATCH (a:Entity)-[r]->(b:Entity) RETURN a.id AS src, b.id AS dst, type(r) AS rel, r.attrs AS attrs`,
		nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("load edges: %w", err))
	}

	for _, rec := range edges.Records {
		e, err := edgeFromRecord(rec)
		if err != nil {
			s.logger.WithError(err).Warn("skipping undecodable edge")
			continue
		}
		g.AddEdge(e)
	}

	s.logger.WithFields(logrus.Fields{
		"nodes": g.NodeCount(),
		"edges": g.EdgeCount(),
	}).Debug("loaded graph snapshot from neo4j")

	return g, nil
}

// UpsertNode MERGEs a node on its canonical id.
func (s *Neo4jStore) UpsertNode(ctx context.Context, n *models.Node) error {
	attrs, err := json.Marshal(n.Attrs)
	if err != nil {
		return fmt.Errorf("encode node attrs: %w", err)
	}

	params := map[string]any{
		"id":    n.ID,
		"type":  string(n.Type),
		"attrs": string(attrs),
	}
	cypher := `MERGE (n:Entity {id: $id}) SET n.type = $type, n.attrs = $attrs`
	if len(n.Embedding) > 0 {
		params["embedding"] = n.Embedding
		cypher += `, n.embedding = $embedding`
	}

	if _, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database)); err != nil {
		return fmt.Errorf("upsert node %s: %w", n.ID, err)
	}
	return nil
}

// InsertEdge MERGEs a relation between two existing nodes.
func (s *Neo4jStore) InsertEdge(ctx context.Context, e *models.Edge) error {
	rel, ok := cypherRelations[e.Relation]
	if !ok {
		return fmt.Errorf("unknown relation %q", e.Relation)
	}

	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		return fmt.Errorf("encode edge attrs: %w", err)
	}

	cypher := fmt.Sprintf(
		`MATCH (a:Entity {id: $src}), (b:Entity {id: $dst}) MERGE (a)-[r:%s]->(b) SET r.attrs = $attrs`, rel)
	params := map[string]any{"src": e.Src, "dst": e.Dst, "attrs": string(attrs)}

	if _, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database)); err != nil {
		return fmt.Errorf("insert edge %s->%s: %w", e.Src, e.Dst, err)
	}
	return nil
}

// SaveEmbedding attaches a vector to an existing node.
func (s *Neo4jStore) SaveEmbedding(ctx context.Context, nodeID string, vec []float64) error {
	_, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MATCH (n:Entity {id: $id}) SET n.embedding = $embedding`,
		map[string]any{"id": nodeID, "embedding": vec},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", nodeID, err)
	}
	return nil
}

func nodeFromRecord(rec *neo4j.Record) (*models.Node, error) {
	id, _ := rec.Get("id")
	typ, _ := rec.Get("type")
	n := &models.Node{
		ID:   fmt.Sprintf("%v", id),
		Type: models.NodeType(fmt.Sprintf("%v", typ)),
	}

	if raw, ok := rec.Get("attrs"); ok && raw != nil {
		if str, ok := raw.(string); ok && str != "" {
			if err := json.Unmarshal([]byte(str), &n.Attrs); err != nil {
				return nil, fmt.Errorf("decode attrs for %s: %w", n.ID, err)
			}
		}
	}

	if raw, ok := rec.Get("embedding"); ok && raw != nil {
		vals, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("unexpected embedding shape for %s", n.ID)
		}
		n.Embedding = make([]float64, 0, len(vals))
		for _, v := range vals {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("non-numeric embedding component for %s", n.ID)
			}
			n.Embedding = append(n.Embedding, f)
		}
	}

	return n, nil
}

func edgeFromRecord(rec *neo4j.Record) (*models.Edge, error) {
	src, _ := rec.Get("src")
	dst, _ := rec.Get("dst")
	rel, _ := rec.Get("rel")
	e := &models.Edge{
		Src:      fmt.Sprintf("%v", src),
		Dst:      fmt.Sprintf("%v", dst),
		Relation: models.Relation(fmt.Sprintf("%v", rel)),
	}

	if raw, ok := rec.Get("attrs"); ok && raw != nil {
		if str, ok := raw.(string); ok && str != "" {
			if err := json.Unmarshal([]byte(str), &e.Attrs); err != nil {
				return nil, fmt.Errorf("decode attrs for %s->%s: %w", e.Src, e.Dst, err)
			}
		}
	}

	return e, nil
}
