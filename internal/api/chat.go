package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// statusClientClosedRequest mirrors nginx's non-standard code for a request
// the client abandoned mid-flight.
const statusClientClosedRequest = 499

type chatRequest struct {
	Text      string `json:"text"`
	Image     []byte `json:"image,omitempty"`
	Memory    string `json:"memory,omitempty"`
	Ignite    bool   `json:"ignite"`
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatResponse struct {
	Text        string              `json:"text"`
	ToolResults []domain.ToolResult `json:"toolResults,omitempty"`
	Balance     domain.Cents        `json:"balance"`
	SessionID   string              `json:"sessionId"`
}

// collector gathers tool results in dispatch order.
type collector struct {
	results []domain.ToolResult
}

func (c *collector) SendToolResult(_ context.Context, res domain.ToolResult) error {
	c.results = append(c.results, res)
	return nil
}

// handleChat runs one metered assistant turn: charge first, then the model
// round trip and any tool calls. A refused charge never reaches the model.
// POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}
	account, ok := s.coordinator.Account()
	if !ok {
		writeError(w, http.StatusBadRequest, "no active session")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "requestId is required")
		return
	}

	feature := domain.FeatureChatNormal
	if req.Ignite {
		feature = domain.FeatureChatIgnite
	}

	sink := &collector{}
	var turnText string
	effect := func(ctx context.Context) error {
		turn, err := s.dispatcher.RunTurn(ctx, domain.ModelRequest{
			Text:    req.Text,
			Image:   req.Image,
			Context: summarizeRecords(s.coordinator.Snapshot()),
			Memory:  req.Memory,
			Ignite:  req.Ignite,
		}, sink)
		if err != nil {
			return err
		}
		if turn.Response != nil {
			turnText = turn.Response.Text
		}
		return nil
	}

	balance, err := s.gateway.Perform(r.Context(), account.ID, feature.Cost(), feature, req.RequestID, effect)
	if err != nil {
		if errors.Is(err, domain.ErrTurnCancelled) {
			writeError(w, statusClientClosedRequest, "turn cancelled")
			return
		}
		writeError(w, statusForErr(err), err.Error())
		return
	}

	sessionID := s.appendToSession(r.Context(), req, turnText)

	writeJSON(w, http.StatusOK, chatResponse{
		Text:        turnText,
		ToolResults: sink.results,
		Balance:     balance,
		SessionID:   sessionID,
	})
}

// appendToSession records the user turn and the assistant's reply on the
// chat session, creating one when the client did not name an existing
// session. Persistence failures are non-fatal for the turn.
func (s *Server) appendToSession(ctx context.Context, req chatRequest, reply string) string {
	set := s.coordinator.Snapshot()

	var session domain.ChatSession
	found := false
	if req.SessionID != "" {
		for _, cs := range set.ChatSessions {
			if cs.ID == req.SessionID {
				session = cs
				found = true
				break
			}
		}
	}
	if !found {
		session = domain.ChatSession{
			ID:    req.SessionID,
			Title: sessionTitle(req.Text),
		}
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
	}

	session.Messages = append(session.Messages,
		domain.ChatMessage{Role: "user", Content: req.Text},
		domain.ChatMessage{Role: "assistant", Content: reply},
	)
	session.UpdatedAt = s.now().UTC()

	if err := s.coordinator.Upsert(ctx, session); err != nil {
		return ""
	}
	return session.ID
}

// sessionTitle derives a short session title from the opening message.
func sessionTitle(text string) string {
	title := strings.TrimSpace(text)
	// Truncate on rune boundaries so a multi-byte character is never split.
	if runes := []rune(title); len(runes) > 40 {
		title = string(runes[:40])
	}
	return title
}

// summarizeRecords builds the free-text context the model receives with
// each turn.
func summarizeRecords(set domain.RecordSet) string {
	var b strings.Builder

	open := 0
	for _, t := range set.Tasks {
		if !t.Completed {
			open++
		}
	}
	fmt.Fprintf(&b, "%d tasks (%d open)", len(set.Tasks), open)

	if len(set.Tasks) > 0 {
		b.WriteString(": ")
		for i, t := range set.Tasks {
			if i > 0 {
				b.WriteString(", ")
			}
			if i == 10 {
				b.WriteString("...")
				break
			}
			b.WriteString(t.Title)
			if t.Completed {
				b.WriteString(" (done)")
			}
		}
	}

	if len(set.Projects) > 0 {
		fmt.Fprintf(&b, "; %d projects", len(set.Projects))
	}
	if len(set.Clients) > 0 {
		fmt.Fprintf(&b, "; %d clients", len(set.Clients))
	}
	if len(set.Habits) > 0 {
		fmt.Fprintf(&b, "; %d habits", len(set.Habits))
	}
	return b.String()
}
