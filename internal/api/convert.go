package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/faeterjconnect/connect/internal/auth"
	"github.com/faeterjconnect/connect/internal/backend"
	"github.com/faeterjconnect/connect/internal/bus"
	"github.com/faeterjconnect/connect/internal/chat"
	"github.com/faeterjconnect/connect/internal/mobility"
	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/status"
	"github.com/faeterjconnect/connect/internal/store"
	"github.com/faeterjconnect/connect/internal/transport"
)

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrUnauthorized), errors.Is(err, auth.ErrNotAuthenticated):
		return grpcstatus.Errorf(codes.Unauthenticated, "%s: %v", op, err)
	case errors.Is(err, transport.ErrNotConnected):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	case errors.Is(err, chat.ErrNoConversation):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, auth.ErrInvalidUserID), errors.Is(err, auth.ErrMissingToken):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return grpcstatus.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.As(err, &se):
		return grpcstatus.Errorf(httpCode(se.Status), "%s: %v", op, err)
	}
	return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
}

func httpCode(status int) codes.Code {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case status == http.StatusForbidden:
		return codes.PermissionDenied
	case status == http.StatusNotFound:
		return codes.NotFound
	case status == http.StatusConflict:
		return codes.AlreadyExists
	case status >= http.StatusInternalServerError:
		return codes.Unavailable
	}
	return codes.Unknown
}

func conversationToRPC(c chat.Conversation, selfID string) rpc.Conversation {
	out := rpc.Conversation{
		ID:          c.ID,
		Title:       c.Title,
		DisplayName: c.DisplayName(selfID),
		IsGroup:     c.IsGroup,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, rpc.Participant{UserID: p.UserID, Username: p.Username, Email: p.Email})
	}
	return out
}

func conversationsToRPC(list []chat.Conversation, selfID string) []rpc.Conversation {
	out := make([]rpc.Conversation, 0, len(list))
	for _, c := range list {
		out = append(out, conversationToRPC(c, selfID))
	}
	return out
}

func messageToRPC(m chat.Message, selfID string) rpc.Message {
	return rpc.Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderName:      m.SenderName,
		Content:         m.Content,
		Kind:            m.Kind,
		TimestampUnixMs: m.Timestamp.UnixMilli(),
		FromMe:          selfID != "" && chat.SameUser(m.SenderID, selfID),
		Optimistic:      m.Optimistic(),
	}
}

func messagesToRPC(list []chat.Message, selfID string) []rpc.Message {
	out := make([]rpc.Message, 0, len(list))
	for _, m := range list {
		out = append(out, messageToRPC(m, selfID))
	}
	return out
}

func storeMessageToRPC(m store.Message) rpc.Message {
	return rpc.Message{
		ID:              m.MsgID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		SenderName:      m.SenderName,
		Content:         m.Content,
		Kind:            m.Kind,
		TimestampUnixMs: m.Timestamp,
		FromMe:          m.FromMe,
	}
}

func snapshotToRPC(s mobility.Snapshot) *rpc.NearbyVehiclesResponse {
	out := &rpc.NearbyVehiclesResponse{
		Vehicles: make([]rpc.Vehicle, 0, len(s.Vehicles)),
		Lines:    make([]rpc.LineSummary, 0, len(s.Lines)),
	}
	for _, v := range s.Vehicles {
		eta := v.ETA
		if math.IsInf(eta, 0) || math.IsNaN(eta) {
			eta = -1
		}
		out.Vehicles = append(out.Vehicles, rpc.Vehicle{
			Ordem:      v.Ordem,
			Linha:      v.Linha,
			Latitude:   v.Latitude,
			Longitude:  v.Longitude,
			SpeedKmh:   v.SpeedKmh,
			DistM:      v.DistM,
			ETAMinutes: eta,
			ETALabel:   mobility.FormatETA(v.ETA, v.SpeedKmh),
			DistLabel:  mobility.FormatDistance(v.DistM),
			LineColor:  mobility.LineColor(v.Linha),
		})
	}
	for _, l := range s.Lines {
		// A line's ETA is only infinite when all its vehicles are stopped.
		out.Lines = append(out.Lines, rpc.LineSummary{
			Linha:    l.Linha,
			ETALabel: mobility.FormatETA(l.ETA, 0),
			Vehicles: l.Vehicles,
			Color:    mobility.LineColor(l.Linha),
		})
	}
	return out
}

// eventPayload renders a bus payload in its wire shape.
func eventPayload(evt bus.Event, selfID string) (json.RawMessage, error) {
	var v any
	switch p := evt.Payload.(type) {
	case chat.MessageEvent:
		v = rpc.MessageEventPayload{Message: messageToRPC(p.Message, selfID), ReplacedID: p.ReplacedID}
	case chat.HistoryEvent:
		v = rpc.GetThreadResponse{ConversationID: p.ConversationID, Messages: messagesToRPC(p.Messages, selfID)}
	case chat.TypingEvent:
		v = rpc.TypingEventPayload{ConversationID: p.ConversationID, Users: p.Users, Hint: p.Hint}
	case chat.Conversation:
		v = conversationToRPC(p, selfID)
	case []chat.Conversation:
		v = conversationsToRPC(p, selfID)
	case bus.Notice:
		v = rpc.NoticePayload{Level: p.Level, Message: p.Message}
	case status.StatusChange:
		v = rpc.StatusPayload{From: string(p.From), To: string(p.To)}
	case auth.User:
		v = rpc.LoginResponse{UserID: p.UserID, Username: p.Username, Email: p.Email, Role: p.Role}
	case nil:
		return nil, nil
	default:
		v = p
	}
	return json.Marshal(v)
}
