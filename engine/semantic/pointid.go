package semantic

import (
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

// pointID maps a course id onto a Qdrant point id. Canonical UUIDs and
// canonical unsigned decimals are used as is; anything else becomes a
// UUIDv5 of the id so the mapping is stable across processes.
func pointID(id string) *pb.PointId {
	if u, err := uuid.Parse(id); err == nil && u.String() == id {
		return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	if n, err := strconv.ParseUint(id, 10, 64); err == nil && strconv.FormatUint(n, 10) == id {
		return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()}}
}

// pointIDString renders a point id back into text. It is used for scroll
// cursors and for points stored without a course_id payload.
func pointIDString(p *pb.PointId) string {
	switch opt := p.GetPointIdOptions().(type) {
	case *pb.PointId_Uuid:
		return opt.Uuid
	case *pb.PointId_Num:
		return strconv.FormatUint(opt.Num, 10)
	default:
		return ""
	}
}

// parseCursor is the inverse of pointIDString for scroll offsets.
func parseCursor(cursor string) *pb.PointId {
	if cursor == "" {
		return nil
	}
	if n, err := strconv.ParseUint(cursor, 10, 64); err == nil {
		return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: cursor}}
}
