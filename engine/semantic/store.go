package semantic

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/LuisaMG01/course-vectorization/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultCreateTimeout bounds collection creation on the Qdrant side.
const DefaultCreateTimeout = 60 * time.Second

// QdrantConfig describes how to reach the Qdrant gRPC endpoint.
type QdrantConfig struct {
	Host          string
	Port          int
	APIKey        string
	TLS           bool
	Collection    string
	CreateTimeout time.Duration
}

// pointsClient is the subset of pb.PointsClient the store uses.
type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// collectionsClient is the subset of pb.CollectionsClient the store uses.
type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantStore is the Index backed by a Qdrant collection.
type QdrantStore struct {
	conn          *grpc.ClientConn
	points        pointsClient
	collections   collectionsClient
	collection    string
	createTimeout time.Duration
}

// apiKeyCreds attaches the Qdrant api-key header to every call.
type apiKeyCreds struct {
	key    string
	secure bool
}

func (c apiKeyCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"api-key": c.key}, nil
}

func (c apiKeyCreds) RequireTransportSecurity() bool { return c.secure }

// NewQdrant creates a store for cfg. grpc.NewClient does not dial, so an
// unreachable server surfaces on the first call (normally Initialize).
func NewQdrant(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("semantic: qdrant: collection name is required")
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	opts := []grpc.DialOption{}
	if cfg.TLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(apiKeyCreds{key: cfg.APIKey, secure: cfg.TLS}))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg.Collection)
	s.conn = conn
	if cfg.CreateTimeout > 0 {
		s.createTimeout = cfg.CreateTimeout
	}
	return s, nil
}

// NewWithClients builds a store around existing clients. Used by tests.
func NewWithClients(points pointsClient, collections collectionsClient, collection string) *QdrantStore {
	return &QdrantStore{
		points:        points,
		collections:   collections,
		collection:    collection,
		createTimeout: DefaultCreateTimeout,
	}
}

// Collection returns the collection name.
func (q *QdrantStore) Collection() string { return q.collection }

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// Initialize creates the collection if it doesn't exist. An existing
// collection is never inspected or altered.
func (q *QdrantStore) Initialize(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("semantic: qdrant: dimension must be positive, got %d", dims)
	}
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w: %w", ErrRead, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	timeout := uint64(q.createTimeout / time.Second)
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		Timeout:        &timeout,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w: %w", q.collection, ErrWrite, err)
	}
	return nil
}

// DeleteCollection drops the whole collection. Used by integration tests.
func (q *QdrantStore) DeleteCollection(ctx context.Context) error {
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert writes one point and waits for it to be applied.
func (q *QdrantStore) Upsert(ctx context.Context, rec Record) error {
	payload := make(map[string]*pb.Value, len(rec.Payload)+1)
	for k, v := range rec.Payload {
		payload[k] = stringValue(v)
	}
	payload[domain.PayloadCourseID] = stringValue(rec.ID)

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pointID(rec.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: rec.Vector},
				},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %s: %w: %w", rec.ID, ErrWrite, err)
	}
	return nil
}

// Retrieve fetches one point by course id. Vectors are not requested.
func (q *QdrantStore) Retrieve(ctx context.Context, id string) (Record, bool, error) {
	resp, err := q.points.Get(ctx, &pb.GetPoints{
		CollectionName: q.collection,
		Ids:            []*pb.PointId{pointID(id)},
		WithPayload:    withPayload(),
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("semantic: retrieve %s: %w: %w", id, ErrRead, err)
	}
	if len(resp.GetResult()) == 0 {
		return Record{}, false, nil
	}
	p := resp.GetResult()[0]
	payload := payloadStrings(p.GetPayload())
	return Record{ID: courseID(p.GetId(), payload), Payload: payload}, true, nil
}

// Delete removes a point. Deleting a missing id succeeds.
func (q *QdrantStore) Delete(ctx context.Context, id string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %s: %w: %w", id, ErrWrite, err)
	}
	return nil
}

// Search performs k-NN similarity search.
func (q *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    withPayload(),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w: %w", ErrRead, err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		payload := payloadStrings(r.GetPayload())
		hits = append(hits, Hit{
			ID:      courseID(r.GetId(), payload),
			Score:   r.GetScore(),
			Payload: payload,
		})
	}
	SortHits(hits)
	return hits, nil
}

// Scroll lists course ids in point-id order. The cursor is Qdrant's next
// page offset rendered as text.
func (q *QdrantStore) Scroll(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	if limit <= 0 {
		return []string{}, "", nil
	}
	n := uint32(limit)
	resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: q.collection,
		Offset:         parseCursor(cursor),
		Limit:          &n,
		WithPayload:    withPayload(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("semantic: scroll: %w: %w", ErrRead, err)
	}

	ids := make([]string, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		ids = append(ids, courseID(p.GetId(), payloadStrings(p.GetPayload())))
	}
	return ids, pointIDString(resp.GetNextPageOffset()), nil
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// payloadStrings flattens a Qdrant payload, rendering scalars as text.
func payloadStrings(in map[string]*pb.Value) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			out[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			out[k] = strconv.FormatInt(kind.IntegerValue, 10)
		case *pb.Value_DoubleValue:
			out[k] = strconv.FormatFloat(kind.DoubleValue, 'g', -1, 64)
		case *pb.Value_BoolValue:
			out[k] = strconv.FormatBool(kind.BoolValue)
		}
	}
	return out
}

// courseID prefers the course_id payload and falls back to the point id.
func courseID(p *pb.PointId, payload map[string]string) string {
	if id := payload[domain.PayloadCourseID]; id != "" {
		return id
	}
	return pointIDString(p)
}
