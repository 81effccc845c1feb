package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertErr  error
	getReq     *pb.GetPoints
	getResp    *pb.GetResponse
	getErr     error
	deleteReq  *pb.DeletePoints
	deleteErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
	scrollReq  *pb.ScrollPoints
	scrollResp *pb.ScrollResponse
	scrollErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}
func (m *mockPoints) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	m.getReq = in
	return m.getResp, m.getErr
}
func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleteReq = in
	return &pb.PointsOperationResponse{}, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}
func (m *mockPoints) Scroll(_ context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	m.scrollReq = in
	return m.scrollResp, m.scrollErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	createReq *pb.CreateCollection
	createErr error
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReq = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

func str(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }

func uuidID(s string) *pb.PointId { return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: s}} }

// --- Tests ---

func TestNewWithClients(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "cursos")
	if vs.Collection() != "cursos" {
		t.Fatalf("collection = %q", vs.Collection())
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewQdrant(t *testing.T) {
	vs, err := NewQdrant(QdrantConfig{Host: "localhost", Port: 6334, APIKey: "k", Collection: "cursos"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer vs.Close()
	if vs.createTimeout != DefaultCreateTimeout {
		t.Fatalf("createTimeout = %v", vs.createTimeout)
	}
}

func TestNewQdrant_RequiresCollection(t *testing.T) {
	if _, err := NewQdrant(QdrantConfig{Host: "localhost", Port: 6334}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAPIKeyCreds(t *testing.T) {
	c := apiKeyCreds{key: "secret", secure: true}
	md, err := c.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md["api-key"] != "secret" {
		t.Fatalf("metadata = %v", md)
	}
	if !c.RequireTransportSecurity() {
		t.Fatal("expected transport security to be required")
	}
}

func TestInitialize_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "cursos"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "cursos")
	if err := vs.Initialize(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq != nil {
		t.Fatal("existing collection must not be recreated")
	}
}

func TestInitialize_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "other"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "cursos")
	if err := vs.Initialize(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := cols.createReq
	if req == nil {
		t.Fatal("expected Create call")
	}
	params := req.GetVectorsConfig().GetParams()
	if params.GetSize() != 768 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("unexpected params: %v", params)
	}
	if req.GetTimeout() != 60 {
		t.Fatalf("timeout = %d, want 60", req.GetTimeout())
	}
}

func TestInitialize_Errors(t *testing.T) {
	ctx := context.Background()

	vs := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc fail")}, "cursos")
	if err := vs.Initialize(ctx, 4); !errors.Is(err, ErrRead) {
		t.Fatalf("list failure: got %v", err)
	}

	vs = NewWithClients(&mockPoints{}, &mockCollections{
		listResp:  &pb.ListCollectionsResponse{},
		createErr: errors.New("create fail"),
	}, "cursos")
	if err := vs.Initialize(ctx, 4); !errors.Is(err, ErrWrite) {
		t.Fatalf("create failure: got %v", err)
	}

	if err := vs.Initialize(ctx, 0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestDeleteCollection(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "cursos")
	if err := vs.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vs = NewWithClients(&mockPoints{}, &mockCollections{deleteErr: errors.New("fail")}, "cursos")
	if err := vs.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_BuildsPoint(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")

	rec := Record{
		ID:      "course-42",
		Vector:  []float32{1, 0, 0},
		Payload: map[string]string{"name": "Go", "description": "Concurrency"},
	}
	if err := vs.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := pts.upsertReq
	if !req.GetWait() {
		t.Fatal("upsert must wait")
	}
	if len(req.GetPoints()) != 1 {
		t.Fatalf("points = %d", len(req.GetPoints()))
	}
	p := req.GetPoints()[0]
	if p.GetId().GetUuid() != pointID("course-42").GetUuid() {
		t.Fatalf("point id = %v", p.GetId())
	}
	pl := p.GetPayload()
	if pl["course_id"].GetStringValue() != "course-42" || pl["name"].GetStringValue() != "Go" {
		t.Fatalf("payload = %v", pl)
	}
	if got := p.GetVectors().GetVector().GetData(); len(got) != 3 || got[0] != 1 {
		t.Fatalf("vector = %v", got)
	}
}

func TestUpsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("unavailable")}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	err := vs.Upsert(context.Background(), Record{ID: "a", Vector: []float32{1}})
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestRetrieve(t *testing.T) {
	pts := &mockPoints{
		getResp: &pb.GetResponse{Result: []*pb.RetrievedPoint{{
			Id: uuidID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"),
			Payload: map[string]*pb.Value{
				"course_id":   str("course-1"),
				"name":        str("Go"),
				"description": str("Basics"),
			},
		}}},
	}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")

	rec, ok, err := vs.Retrieve(context.Background(), "course-1")
	if err != nil || !ok {
		t.Fatalf("Retrieve = %v, %v", ok, err)
	}
	if rec.ID != "course-1" || rec.Payload["name"] != "Go" {
		t.Fatalf("record = %+v", rec)
	}
	if len(pts.getReq.GetIds()) != 1 {
		t.Fatalf("ids = %v", pts.getReq.GetIds())
	}
}

func TestRetrieve_NotFound(t *testing.T) {
	pts := &mockPoints{getResp: &pb.GetResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	_, ok, err := vs.Retrieve(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected not found without error, got %v, %v", ok, err)
	}
}

func TestRetrieve_Error(t *testing.T) {
	pts := &mockPoints{getErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	if _, _, err := vs.Retrieve(context.Background(), "x"); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	if err := vs.Delete(context.Background(), "17"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := pts.deleteReq.GetPoints().GetPoints().GetIds()
	if len(ids) != 1 || ids[0].GetNum() != 17 {
		t.Fatalf("ids = %v", ids)
	}

	pts.deleteErr = errors.New("fail")
	if err := vs.Delete(context.Background(), "17"); !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestSearch_SortsAndMapsIDs(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{Id: uuidID("u2"), Score: 0.5, Payload: map[string]*pb.Value{"course_id": str("b")}},
				{Id: uuidID("u1"), Score: 0.9, Payload: map[string]*pb.Value{"course_id": str("z")}},
				{Id: uuidID("u3"), Score: 0.5, Payload: map[string]*pb.Value{"course_id": str("a")}},
				{Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 7}}, Score: 0.1},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	hits, err := vs.Search(context.Background(), []float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"z", "a", "b", "7"}
	for i, h := range hits {
		if h.ID != want[i] {
			t.Fatalf("hit %d = %s, want %s", i, h.ID, want[i])
		}
	}
	if pts.searchReq.GetLimit() != 4 {
		t.Fatalf("limit = %d", pts.searchReq.GetLimit())
	}
}

func TestSearch_NonPositiveK(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	hits, err := vs.Search(context.Background(), []float32{1}, 0)
	if err != nil || hits == nil || len(hits) != 0 {
		t.Fatalf("Search(k=0) = %v, %v", hits, err)
	}
	if pts.searchReq != nil {
		t.Fatal("backend should not be called")
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	if _, err := vs.Search(context.Background(), []float32{1}, 5); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
}

func TestScroll(t *testing.T) {
	pts := &mockPoints{
		scrollResp: &pb.ScrollResponse{
			Result: []*pb.RetrievedPoint{
				{Id: uuidID("u1"), Payload: map[string]*pb.Value{"course_id": str("a")}},
				{Id: uuidID("u2"), Payload: map[string]*pb.Value{"course_id": str("b")}},
			},
			NextPageOffset: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 99}},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")

	ids, next, err := vs.Scroll(context.Background(), "42", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
	if next != "99" {
		t.Fatalf("next = %q", next)
	}
	if pts.scrollReq.GetOffset().GetNum() != 42 || pts.scrollReq.GetLimit() != 2 {
		t.Fatalf("request = %v", pts.scrollReq)
	}
}

func TestScroll_Error(t *testing.T) {
	pts := &mockPoints{scrollErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "cursos")
	if _, _, err := vs.Scroll(context.Background(), "", 10); !errors.Is(err, ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
}

func TestPayloadStrings(t *testing.T) {
	got := payloadStrings(map[string]*pb.Value{
		"s": str("x"),
		"i": {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
		"d": {Kind: &pb.Value_DoubleValue{DoubleValue: 1.5}},
		"b": {Kind: &pb.Value_BoolValue{BoolValue: true}},
	})
	if got["s"] != "x" || got["i"] != "3" || got["d"] != "1.5" || got["b"] != "true" {
		t.Fatalf("payloadStrings = %v", got)
	}
}
