package vectorstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tanishra/smartinfo/core"
)

// Payload keys written to every Qdrant point.
const (
	payloadDocID   = "doc_id"
	payloadIndex   = "chunk_index"
	payloadSeq     = "seq"
	payloadText    = "text"
	payloadStart   = "start"
	payloadEnd     = "end"
	payloadOverlap = "overlap"
	payloadPages   = "pages"
	payloadSource  = "source"
)

// pointNamespace derives stable point ids from chunk ids.
var pointNamespace = uuid.MustParse("6f1d3c0e-8b7a-4f3e-9c51-2d0b6a7e4c19")

// QdrantOptions configure a QdrantStore.
type QdrantOptions struct {
	Host       string
	Port       int
	Collection string
	// Dimensions is the vector size used when the collection is created.
	Dimensions int
}

// QdrantStore keeps entries in a Qdrant collection over gRPC.
//
// Replace upserts points under ids derived from the chunk id, then deletes
// the document's points beyond the new chunk count. Chunks that keep their
// index are overwritten in place, so a reader never sees two versions of the
// same chunk.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	opts        QdrantOptions
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant and creates the collection when missing.
func NewQdrantStore(ctx context.Context, optFns ...func(o *QdrantOptions)) (*QdrantStore, error) {
	opts := QdrantOptions{
		Host:       "localhost",
		Port:       6334,
		Collection: "smartinfo",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant: vector dimensions must be positive, got %d", opts.Dimensions)
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect: %w", err)
	}

	s := &QdrantStore{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		opts:        opts,
	}

	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.opts.Collection {
			return s.checkCollection(ctx)
		}
	}

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.opts.Collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.opts.Dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", s.opts.Collection, err)
	}
	return nil
}

// checkCollection rejects an existing collection built for another vector size.
func (s *QdrantStore) checkCollection(ctx context.Context) error {
	info, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: s.opts.Collection})
	if err != nil {
		return fmt.Errorf("qdrant: describe collection %q: %w", s.opts.Collection, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && int(size) != s.opts.Dimensions {
		return dimensionError(int(size), s.opts.Dimensions)
	}
	return nil
}

func (s *QdrantStore) Replace(ctx context.Context, docID string, entries []core.IndexEntry) error {
	wait := true

	if err := checkDimensions(s.opts.Dimensions, entries); err != nil {
		return err
	}

	if len(entries) > 0 {
		points := make([]*qdrant.PointStruct, 0, len(entries))
		for _, e := range entries {
			points = append(points, toPoint(e))
		}

		if _, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.opts.Collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("qdrant: upsert %q: %w", docID, err)
		}
	}

	from := float64(len(entries))
	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		keywordCondition(payloadDocID, docID),
		{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
			Key:   payloadIndex,
			Range: &qdrant.Range{Gte: &from},
		}}},
	}}

	return s.deleteByFilter(ctx, filter)
}

func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	if k <= 0 {
		return []core.ScoredChunk{}, nil
	}
	if len(vector) != s.opts.Dimensions {
		return nil, dimensionError(s.opts.Dimensions, len(vector))
	}

	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.opts.Collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]core.ScoredChunk, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hit := fromPayload(p.GetPayload())
		hit.Score = float64(p.GetScore())
		hits = append(hits, hit)
	}

	return Rank(hits, k), nil
}

func (s *QdrantStore) Delete(ctx context.Context, docID string) error {
	return s.deleteByFilter(ctx, &qdrant.Filter{Must: []*qdrant.Condition{
		keywordCondition(payloadDocID, docID),
	}})
}

func (s *QdrantStore) Seq(ctx context.Context, docID string) (int64, bool, error) {
	limit := uint32(1)

	resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.opts.Collection,
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{
			keywordCondition(payloadDocID, docID),
		}},
		Limit: &limit,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Include{
				Include: &qdrant.PayloadIncludeSelector{Fields: []string{payloadSeq}},
			},
		},
	})
	if err != nil {
		return 0, false, fmt.Errorf("qdrant: scroll %q: %w", docID, err)
	}
	if len(resp.GetResult()) == 0 {
		return 0, false, nil
	}

	return resp.GetResult()[0].GetPayload()[payloadSeq].GetIntegerValue(), true, nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.opts.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	wait := true
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.opts.Collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete: %w", err)
	}
	return nil
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
		Key:   key,
		Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
	}}}
}

func pointID(c core.Chunk) *qdrant.PointId {
	id := uuid.NewSHA1(pointNamespace, []byte(c.ID()))
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id.String()}}
}

func toPoint(e core.IndexEntry) *qdrant.PointStruct {
	pages := make([]*qdrant.Value, 0, len(e.Chunk.Pages))
	for _, p := range e.Chunk.Pages {
		pages = append(pages, intValue(int64(p)))
	}

	return &qdrant.PointStruct{
		Id: pointID(e.Chunk),
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: slices.Clone(e.Vector)},
			},
		},
		Payload: map[string]*qdrant.Value{
			payloadDocID:   stringValue(e.Chunk.DocumentID),
			payloadIndex:   intValue(int64(e.Chunk.Index)),
			payloadSeq:     intValue(e.Seq),
			payloadText:    stringValue(e.Chunk.Text),
			payloadStart:   intValue(int64(e.Chunk.Start)),
			payloadEnd:     intValue(int64(e.Chunk.End)),
			payloadOverlap: intValue(int64(e.Chunk.Overlap)),
			payloadSource:  stringValue(source(e)),
			payloadPages:   {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: pages}}},
		},
	}
}

func fromPayload(p map[string]*qdrant.Value) core.ScoredChunk {
	c := core.Chunk{
		DocumentID: p[payloadDocID].GetStringValue(),
		Index:      int(p[payloadIndex].GetIntegerValue()),
		Text:       p[payloadText].GetStringValue(),
		Start:      int(p[payloadStart].GetIntegerValue()),
		End:        int(p[payloadEnd].GetIntegerValue()),
		Overlap:    int(p[payloadOverlap].GetIntegerValue()),
	}
	for _, v := range p[payloadPages].GetListValue().GetValues() {
		c.Pages = append(c.Pages, int(v.GetIntegerValue()))
	}

	return core.ScoredChunk{
		Chunk:  c,
		Source: p[payloadSource].GetStringValue(),
		Seq:    p[payloadSeq].GetIntegerValue(),
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
}
