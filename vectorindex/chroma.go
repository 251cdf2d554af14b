package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
)

// DefaultChromaURL is the address of a local ChromaDB server.
const DefaultChromaURL = "http://localhost:8000"

// ChromaIndex stores records in a ChromaDB collection.
type ChromaIndex struct {
	client chromago.Client
	url    string
	name   string
	logger *slog.Logger

	mu         sync.RWMutex
	collection chromago.Collection
}

var _ services.VectorIndex = (*ChromaIndex)(nil)

// NewChromaIndex connects to the server at url and gets or creates the
// collection name.
func NewChromaIndex(ctx context.Context, url, name string) (*ChromaIndex, error) {
	if url == "" {
		url = DefaultChromaURL
	}
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(url))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	idx := &ChromaIndex{
		client: client,
		url:    url,
		name:   name,
		logger: slog.Default().With("component", "chroma_index"),
	}
	collection, err := idx.getOrCreateCollection(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	idx.collection = collection
	return idx, nil
}

func (c *ChromaIndex) getOrCreateCollection(ctx context.Context) (chromago.Collection, error) {
	collection, err := c.client.GetOrCreateCollection(
		ctx,
		c.name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Engineering documentation chunks"),
				chromago.NewStringAttribute("created_by", "rag_pipeline"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", c.name, err)
	}
	c.logger.Info("collection ready", "collection", c.name, "url", c.url)
	return collection, nil
}

func (c *ChromaIndex) current() chromago.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

// Close releases the client.
func (c *ChromaIndex) Close() error {
	return c.client.Close()
}

func (c *ChromaIndex) Upsert(ctx context.Context, records []models.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(records))
	texts := make([]string, len(records))
	vectors := make([]embeddings.Embedding, len(records))
	metadatas := make([]chromago.DocumentMetadata, len(records))
	for i, r := range records {
		ids[i] = chromago.DocumentID(r.ID)
		texts[i] = r.Text
		vectors[i] = embeddings.NewEmbeddingFromFloat32(r.Vector)
		metadatas[i] = documentMetadata(r.Metadata)
	}

	err := c.current().Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vectors...),
		chromago.WithMetadatas(metadatas...),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d records into chromadb: %w", len(records), err)
	}
	return nil
}

func (c *ChromaIndex) Query(ctx context.Context, vector []float32, k int, filter map[string]any) (*models.QueryResult, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(k),
	}
	if where := whereClause(filter); where != nil {
		opts = append(opts, chromago.WithWhereQuery(where))
	}

	results, err := c.current().Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	res := &models.QueryResult{}
	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 {
		return res, nil
	}
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()

	for i, id := range idGroups[0] {
		res.IDs = append(res.IDs, string(id))

		text := ""
		if len(documentGroups) > 0 && i < len(documentGroups[0]) && documentGroups[0][i] != nil {
			text = documentGroups[0][i].ContentString()
		}
		res.Texts = append(res.Texts, text)

		var meta chromago.DocumentMetadata
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = metadataGroups[0][i]
		}
		res.Metadatas = append(res.Metadatas, c.metadataMap(id, meta))

		distance := 0.0
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			distance = float64(distanceGroups[0][i])
		}
		res.Distances = append(res.Distances, distance)
	}
	return res, nil
}

func (c *ChromaIndex) Find(ctx context.Context, filter map[string]any) ([]string, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	var opts []chromago.CollectionGetOption
	if where := whereClause(filter); where != nil {
		opts = append(opts, chromago.WithWhereGet(where))
	}
	results, err := c.current().Get(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	ids := make([]string, 0, len(results.GetIDs()))
	for _, id := range results.GetIDs() {
		ids = append(ids, string(id))
	}
	return ids, nil
}

func (c *ChromaIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	docIDs := make([]chromago.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chromago.DocumentID(id)
	}
	if err := c.current().Delete(ctx, chromago.WithIDsDelete(docIDs...)); err != nil {
		return fmt.Errorf("failed to delete %d records from chromadb: %w", len(ids), err)
	}
	return nil
}

func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	count, err := c.current().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (c *ChromaIndex) Peek(ctx context.Context, limit int) ([]models.IndexedRecord, error) {
	results, err := c.current().Get(ctx, chromago.WithLimitGet(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to peek chromadb collection: %w", err)
	}
	ids := results.GetIDs()
	documents := results.GetDocuments()
	metadatas := results.GetMetadatas()

	records := make([]models.IndexedRecord, 0, len(ids))
	for i, id := range ids {
		record := models.IndexedRecord{ID: string(id)}
		if i < len(documents) && documents[i] != nil {
			record.Text = documents[i].ContentString()
		}
		if i < len(metadatas) {
			record.Metadata = c.metadataMap(id, metadatas[i])
		}
		records = append(records, record)
	}
	return records, nil
}

// Reset deletes the collection and creates it again.
func (c *ChromaIndex) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.DeleteCollection(ctx, c.name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", c.name, err)
	}
	collection, err := c.getOrCreateCollection(ctx)
	if err != nil {
		return err
	}
	c.collection = collection
	return nil
}

func (c *ChromaIndex) Name() string { return c.name }

func (c *ChromaIndex) Location() string { return c.url }

// metadataMap converts chroma metadata to a plain map. DocumentMetadata has
// no public accessor for all of its values, so it goes through JSON.
func (c *ChromaIndex) metadataMap(id chromago.DocumentID, meta chromago.DocumentMetadata) map[string]any {
	metaMap := make(map[string]any)
	if meta == nil {
		return metaMap
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		c.logger.Warn("could not marshal metadata", "id", string(id), "error", err)
		return metaMap
	}
	if err := json.Unmarshal(jsonBytes, &metaMap); err != nil {
		c.logger.Warn("could not unmarshal metadata", "id", string(id), "error", err)
		return make(map[string]any)
	}
	return metaMap
}

func documentMetadata(meta map[string]any) chromago.DocumentMetadata {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]*chromago.MetaAttribute, 0, len(keys))
	for _, k := range keys {
		switch v := meta[k].(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, v))
		case bool:
			attrs = append(attrs, chromago.NewBoolAttribute(k, v))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(v)))
		case int32:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(v)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, v))
		case float32:
			attrs = append(attrs, chromago.NewFloatAttribute(k, float64(v)))
		case float64:
			attrs = append(attrs, chromago.NewFloatAttribute(k, v))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(v)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// whereClause translates an equality filter. Filters must be validated first.
func whereClause(filter map[string]any) chromago.WhereClause {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	clauses := make([]chromago.WhereClause, 0, len(keys))
	for _, k := range keys {
		switch v := filter[k].(type) {
		case string:
			clauses = append(clauses, chromago.EqString(k, v))
		case bool:
			clauses = append(clauses, chromago.EqBool(k, v))
		case int:
			clauses = append(clauses, chromago.EqInt(k, v))
		case int32:
			clauses = append(clauses, chromago.EqInt(k, int(v)))
		case int64:
			clauses = append(clauses, chromago.EqInt(k, int(v)))
		case float32:
			clauses = append(clauses, chromago.EqFloat(k, v))
		case float64:
			// JSON request bodies decode every number as float64.
			if v == float64(int(v)) {
				clauses = append(clauses, chromago.EqInt(k, int(v)))
			} else {
				clauses = append(clauses, chromago.EqFloat(k, float32(v)))
			}
		}
	}
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return chromago.And(clauses...)
	}
}
