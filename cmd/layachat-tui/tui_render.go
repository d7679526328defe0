package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
	"github.com/Sudeeparyan/Laya-sub000/internal/claimsapi"
	"github.com/Sudeeparyan/Laya-sub000/internal/pipeline"
	"github.com/Sudeeparyan/Laya-sub000/internal/session"
)

type uiTheme struct {
	header    lipgloss.Style
	status    lipgloss.Style
	sidebar   lipgloss.Style
	userMsg   lipgloss.Style
	assistant lipgloss.Style
	faint     lipgloss.Style
	approved  lipgloss.Style
	rejected  lipgloss.Style
	pending   lipgloss.Style
	active    lipgloss.Style
	spinner   lipgloss.Style
}

func defaultTheme() uiTheme {
	return uiTheme{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")).Padding(0, 1),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		sidebar:   lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderLeft(true).BorderForeground(lipgloss.Color("238")).PaddingLeft(1),
		userMsg:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		faint:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		approved:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		rejected:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		active:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		spinner:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (m *model) layout() {
	chrome := 4 // header, status, input, footer
	w := m.width - sidebarWidth - 2
	if w < 20 {
		w = 20
	}
	h := m.height - chrome
	if h < 4 {
		h = 4
	}
	if !m.ready {
		m.timeline = viewport.New(w, h)
		m.ready = true
	} else {
		m.timeline.Width = w
		m.timeline.Height = h
	}
	m.input.Width = m.width - 4
}

// syncTimeline re-renders the active transcript into the viewport and pins
// it to the newest message.
func (m *model) syncTimeline() {
	if !m.ready {
		return
	}
	active, ok := m.store.Active()
	if !ok {
		m.timeline.SetContent(m.theme.faint.Render("No session. /new starts one."))
		return
	}
	m.timeline.SetContent(m.renderTranscript(active))
	m.timeline.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting…"
	}

	active, _ := m.store.Active()
	header := m.theme.header.Render("layachat") + " " + m.theme.faint.Render(m.headerDetail(active))

	status := m.statusLine
	if active != nil && m.store.InFlight(active.ID) {
		status = m.spin.View() + " " + status
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.timeline.View(),
		m.theme.sidebar.Width(sidebarWidth).Height(m.timeline.Height).Render(m.renderSidebar(active)),
	)

	footer := m.theme.faint.Render("enter send · /help commands · ctrl+c quit")
	return strings.Join([]string{header, body, m.theme.status.Render(status), "> " + m.input.View(), footer}, "\n")
}

func (m *model) headerDetail(active *session.Session) string {
	member := m.memberID
	if member == "" {
		member = "no member"
	}
	for _, mem := range m.members {
		if mem.MemberID == member {
			member = fmt.Sprintf("%s (%s %s)", mem.MemberID, mem.FirstName, mem.LastName)
			break
		}
	}
	title := ""
	if active != nil {
		title = " · " + active.Title
	}
	return member + title
}

func (m *model) renderTranscript(sess *session.Session) string {
	var b strings.Builder
	wrap := lipgloss.NewStyle().Width(m.timeline.Width - 2)

	for _, msg := range sess.Messages {
		switch msg.Role {
		case "user":
			b.WriteString(m.theme.userMsg.Render("You") + "\n")
			b.WriteString(wrap.Render(msg.Content) + "\n\n")
		default:
			b.WriteString(m.theme.assistant.Render("Laya") + "\n")
			b.WriteString(wrap.Render(msg.Content) + "\n")
			if msg.Result != nil && msg.Result.Decision != claims.DecisionError {
				b.WriteString(m.renderDecision(msg.Result) + "\n")
			}
			b.WriteString("\n")
		}
	}

	if m.store.InFlight(sess.ID) {
		b.WriteString(m.theme.faint.Render("Adjudicating…") + "\n")
		for _, line := range lastN(sess.Trace, 6) {
			b.WriteString(m.theme.faint.Render("  "+compactLine(line, m.timeline.Width-4)) + "\n")
		}
	}
	return b.String()
}

func (m *model) renderDecision(res *claims.Result) string {
	style := m.theme.pending
	switch res.Decision {
	case claims.DecisionApproved, claims.DecisionPartial:
		style = m.theme.approved
	case claims.DecisionRejected:
		style = m.theme.rejected
	}
	out := style.Render("▸ " + res.Decision)
	if res.PayoutAmount > 0 {
		out += m.theme.faint.Render(fmt.Sprintf("  €%.2f", res.PayoutAmount))
	}
	for _, flag := range res.Flags {
		out += "\n" + m.theme.pending.Render("  ⚑ "+flag)
	}
	for _, need := range res.NeedsInfo {
		out += "\n" + m.theme.active.Render("  ? "+need)
	}
	return out
}

func (m *model) renderSidebar(active *session.Session) string {
	var b strings.Builder
	b.WriteString(m.theme.userMsg.Render("Pipeline") + "\n")
	b.WriteString(m.renderPipeline(active) + "\n")
	b.WriteString(m.theme.userMsg.Render("Sessions") + "\n")
	b.WriteString(m.renderSessionList())
	return b.String()
}

// renderPipeline draws the stage graph, one rank per row, using statuses
// inferred from the active session's trace.
func (m *model) renderPipeline(active *session.Session) string {
	var (
		trace    []string
		inFlight bool
		decision string
	)
	if active != nil {
		trace = active.Trace
		inFlight = m.store.InFlight(active.ID)
		if !inFlight && active.LastResult != nil {
			decision = active.LastResult.Decision
		}
	}
	statuses := m.topo.Statuses(trace, inFlight, decision)

	var b strings.Builder
	lastRank := -1
	for _, stage := range m.topo.Stages() {
		if stage.Rank != lastRank {
			if lastRank >= 0 {
				b.WriteString("\n")
			}
			lastRank = stage.Rank
		} else {
			b.WriteString("  ")
		}
		st := statuses[stage.ID]
		b.WriteString(m.statusStyle(st).Render(statusGlyph(st) + " " + stage.Label))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *model) statusStyle(st pipeline.Status) lipgloss.Style {
	switch st {
	case pipeline.StatusCompleted:
		return m.theme.approved
	case pipeline.StatusFailed:
		return m.theme.rejected
	case pipeline.StatusActive:
		return m.theme.active
	case pipeline.StatusSkipped:
		return m.theme.faint
	default:
		return m.theme.pending
	}
}

func statusGlyph(st pipeline.Status) string {
	switch st {
	case pipeline.StatusCompleted:
		return "●"
	case pipeline.StatusFailed:
		return "✖"
	case pipeline.StatusActive:
		return "◐"
	case pipeline.StatusSkipped:
		return "◌"
	default:
		return "○"
	}
}

func (m *model) renderSessionList() string {
	sessions := m.store.Sessions()
	active, _ := m.store.Active()

	var b strings.Builder
	for i, sess := range sessions {
		marker := "  "
		if active != nil && sess.ID == active.ID {
			marker = "▸ "
		}
		line := fmt.Sprintf("%s%d. %s", marker, i+1, compactLine(sess.Title, sidebarWidth-8))
		if active != nil && sess.ID == active.ID {
			line = m.theme.userMsg.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *model) renderHistory(memberID string, records []claimsapi.ClaimRecord) string {
	var b strings.Builder
	b.WriteString(m.theme.userMsg.Render("Claims history for "+memberID) + "\n\n")
	if len(records) == 0 {
		b.WriteString(m.theme.faint.Render("No past claims."))
		return b.String()
	}
	for _, rec := range records {
		b.WriteString(fmt.Sprintf("%s  %-24s €%8.2f  %s\n",
			rec.TreatmentDate, compactLine(rec.TreatmentType, 24), rec.ClaimedAmount, rec.Status))
	}
	b.WriteString("\n" + m.theme.faint.Render("Send a message to return to the chat."))
	return b.String()
}

// compactLine collapses whitespace and truncates to width runes.
func compactLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if width > 1 && len(runes) > width {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
