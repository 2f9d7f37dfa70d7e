package api

import (
	"intake.app/console/internal/core"
	"intake.app/console/internal/store"
)

// MessageDTO is a thread message as the SPA reads it.
type MessageDTO struct {
	ID             string          `json:"id"`
	Sender         string          `json:"sender"` // "ai" or "client"
	Text           string          `json:"text"`
	InputType      string          `json:"input_type,omitempty"`
	Options        []string        `json:"options,omitempty"`
	AllowOther     bool            `json:"allow_other,omitempty"`
	Sections       []store.Section `json:"sections,omitempty"`
	SelectedOption *string         `json:"selected_option,omitempty"`
	CustomResponse *string         `json:"custom_response,omitempty"`
	Timestamp      string          `json:"timestamp"`
}

type ConversationDTO struct {
	SessionID string       `json:"session_id"`
	Title     string       `json:"title"`
	Messages  []MessageDTO `json:"messages"`
	CurrentID string       `json:"current_id,omitempty"`
	Awaiting  bool         `json:"awaiting"`
	OtherOpen bool         `json:"other_open"`
	Pending   bool         `json:"pending"`
	Error     string       `json:"error,omitempty"`
	Closed    bool         `json:"closed"`
}

func newMessageDTO(m store.Message) MessageDTO {
	dto := MessageDTO{
		ID:        m.ID,
		Sender:    m.Sender.Wire(),
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
	if m.SelectedOption != "" {
		v := m.SelectedOption
		dto.SelectedOption = &v
	}
	if m.CustomResponse != "" {
		v := m.CustomResponse
		dto.CustomResponse = &v
	}
	switch in := m.Input.(type) {
	case store.OptionsInput:
		dto.InputType = string(store.KindOptions)
		dto.Options = in.Options
		dto.AllowOther = in.AllowOther
	case store.TextInput:
		dto.InputType = string(store.KindText)
	case store.MixedInput:
		dto.InputType = string(store.KindMixed)
		dto.Sections = in.Sections
	}
	return dto
}

func newConversationDTO(v core.ConversationView) ConversationDTO {
	msgs := make([]MessageDTO, 0, len(v.Messages))
	for _, m := range v.Messages {
		msgs = append(msgs, newMessageDTO(m))
	}
	return ConversationDTO{
		SessionID: v.SessionID,
		Title:     v.Title,
		Messages:  msgs,
		CurrentID: v.CurrentID,
		Awaiting:  v.Awaiting,
		OtherOpen: v.OtherOpen,
		Pending:   v.Pending,
		Error:     v.LastError,
		Closed:    v.Closed,
	}
}

type SessionListDTO struct {
	Sessions []store.Session `json:"sessions"`
	Error    string          `json:"error,omitempty"`
}

type DashboardDTO struct {
	TotalSessions      int             `json:"total_sessions"`
	ProjectsRouted     int             `json:"projects_routed"`
	TopDepartment      string          `json:"top_department,omitempty"`
	TopDepartmentCount int             `json:"top_department_count"`
	AwaitingSummary    int             `json:"awaiting_summary"`
	RecentSessions     []store.Session `json:"recent_sessions"`
	Error              string          `json:"error,omitempty"`
}

func newDashboardDTO(d core.Dashboard) DashboardDTO {
	recent := d.RecentSessions
	if recent == nil {
		recent = []store.Session{}
	}
	return DashboardDTO{
		TotalSessions:      d.TotalSessions,
		ProjectsRouted:     d.ProjectsRouted,
		TopDepartment:      d.TopDepartment,
		TopDepartmentCount: d.TopDepartmentCount,
		AwaitingSummary:    d.AwaitingSummary,
		RecentSessions:     recent,
		Error:              d.Error,
	}
}

// ReviewDTO is the summary page. HTML is the rendered summary; Segments
// carry the same text split at comment spans.
type ReviewDTO struct {
	SessionID  string                 `json:"session_id"`
	Summary    string                 `json:"summary"`
	HasSummary bool                   `json:"has_summary"`
	HTML       string                 `json:"html"`
	Highlight  bool                   `json:"highlight"`
	Segments   []core.Segment         `json:"segments"`
	Comments   []store.Comment        `json:"comments"`
	Pending    *core.PendingSelection `json:"pending,omitempty"`
	Loading    bool                   `json:"loading"`
	Error      string                 `json:"error,omitempty"`
}

type RoutingDTO struct {
	SessionID   string                 `json:"session_id"`
	Departments []core.DepartmentState `json:"departments"`
	Notes       string                 `json:"notes"`
	Sent        *store.Routing         `json:"sent,omitempty"`
}

func newRoutingDTO(v core.RoutingView) RoutingDTO {
	return RoutingDTO{SessionID: v.SessionID, Departments: v.Departments, Notes: v.Notes, Sent: v.Sent}
}
