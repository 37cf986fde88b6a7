package lobby

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the lobby service over Connect
type Client struct {
	listRooms   *connect.Client[structpb.Struct, structpb.Struct]
	getRoom     *connect.Client[structpb.Struct, structpb.Struct]
	listResults *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a lobby client for the server at baseURL
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		listRooms:   connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListRoomsProcedure, opts...),
		getRoom:     connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetRoomProcedure, opts...),
		listResults: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ListResultsProcedure, opts...),
	}
}

// ListRooms returns the joinable rooms on the server
func (c *Client) ListRooms(ctx context.Context) ([]models.RoomSummary, error) {
	resp, err := c.listRooms.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, err
	}
	var out struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	if err := fromStruct(resp.Msg, &out); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return out.Rooms, nil
}

// GetRoom fetches one room by code
func (c *Client) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	req, err := structpb.NewStruct(map[string]any{"roomId": code})
	if err != nil {
		return nil, err
	}
	resp, err := c.getRoom.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	var r models.Room
	if err := fromStruct(resp.Msg, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &r, nil
}

// ListResults returns up to limit recently finished rounds
func (c *Client) ListResults(ctx context.Context, limit int) ([]models.RoundResult, error) {
	req, err := structpb.NewStruct(map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	resp, err := c.listResults.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	var out struct {
		Results []models.RoundResult `json:"results"`
	}
	if err := fromStruct(resp.Msg, &out); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return out.Results, nil
}
