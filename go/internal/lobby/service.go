package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/results"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/room"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified name of the lobby service
const ServiceName = "swiftroyale.lobby.v1.LobbyService"

// Procedure paths served by the lobby handler
const (
	ListRoomsProcedure   = "/" + ServiceName + "/ListRooms"
	GetRoomProcedure     = "/" + ServiceName + "/GetRoom"
	ListResultsProcedure = "/" + ServiceName + "/ListResults"
)

// maxResultsLimit bounds a single ListResults page
const maxResultsLimit = 100

// RoomDirectory defines what the service needs from the room store
type RoomDirectory interface {
	List() []models.RoomSummary
	Get(code string) (*models.Room, bool)
}

// Service implements the read-only lobby procedures
type Service struct {
	rooms   RoomDirectory
	results results.Repository
}

// NewService creates a lobby service
func NewService(rooms RoomDirectory, repo results.Repository) *Service {
	return &Service{
		rooms:   rooms,
		results: repo,
	}
}

// NewHandler builds an HTTP handler serving every lobby procedure. The
// returned path is the prefix to mount it under.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	listRooms := connect.NewUnaryHandler(ListRoomsProcedure, svc.ListRooms, opts...)
	getRoom := connect.NewUnaryHandler(GetRoomProcedure, svc.GetRoom, opts...)
	listResults := connect.NewUnaryHandler(ListResultsProcedure, svc.ListResults, opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ListRoomsProcedure:
			listRooms.ServeHTTP(w, r)
		case GetRoomProcedure:
			getRoom.ServeHTTP(w, r)
		case ListResultsProcedure:
			listResults.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ListRooms returns the rooms that can still be joined
func (s *Service) ListRooms(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	joinable := make([]models.RoomSummary, 0)
	for _, summary := range s.rooms.List() {
		if summary.Status == models.RoomStatusWaiting {
			joinable = append(joinable, summary)
		}
	}

	msg, err := toStruct(map[string]any{"rooms": joinable})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// GetRoom returns the full state of one room
func (s *Service) GetRoom(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	code := strings.ToUpper(strings.TrimSpace(stringField(req.Msg, "roomId")))
	if code == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("roomId is required"))
	}
	if !room.ValidCode(code) {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("malformed room code %q", code))
	}

	r, ok := s.rooms.Get(code)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("room %s not found", code))
	}

	msg, err := toStruct(r)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// ListResults returns the most recently finished rounds
func (s *Service) ListResults(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	limit := int(numberField(req.Msg, "limit"))
	if limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must not be negative"))
	}
	if limit > maxResultsLimit {
		limit = maxResultsLimit
	}

	list, err := s.results.ListRecent(ctx, limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if list == nil {
		list = []models.RoundResult{}
	}

	msg, err := toStruct(map[string]any{"results": list})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// toStruct converts a JSON-tagged value into a protobuf Struct
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return structpb.NewStruct(fields)
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value
func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return json.Unmarshal(raw, v)
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	if s == nil {
		return 0
	}
	return s.GetFields()[key].GetNumberValue()
}
