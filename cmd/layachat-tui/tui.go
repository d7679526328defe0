package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
	"github.com/Sudeeparyan/Laya-sub000/internal/claimsapi"
	"github.com/Sudeeparyan/Laya-sub000/internal/pipeline"
	"github.com/Sudeeparyan/Laya-sub000/internal/session"
	"github.com/Sudeeparyan/Laya-sub000/internal/transport"
)

const sidebarWidth = 36

type model struct {
	cfg   appConfig
	store *session.Store
	api   *claimsapi.Client
	topo  *pipeline.Topology
	log   zerolog.Logger

	input    textinput.Model
	timeline viewport.Model
	spin     spinner.Model
	theme    uiTheme

	width  int
	height int
	ready  bool

	memberID   string
	members    []claimsapi.MemberSummary
	statusLine string
	// pendingDoc is an extracted claim form attached to the next send.
	pendingDoc *claims.ExtractedDocument
}

func newModel(cfg appConfig, store *session.Store, api *claimsapi.Client, logger zerolog.Logger) model {
	input := textinput.New()
	input.Placeholder = "Describe your claim, or /help"
	input.CharLimit = 2000
	input.Focus()

	theme := defaultTheme()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = theme.spinner

	return model{
		cfg:        cfg,
		store:      store,
		api:        api,
		topo:       pipeline.Default(),
		log:        logger,
		input:      input,
		spin:       spin,
		theme:      theme,
		memberID:   cfg.MemberID,
		statusLine: "Ready",
	}
}

// Messages delivered back into Update by commands.
type (
	flightEventMsg struct {
		flight *session.Flight
		ev     transport.Event
		ok     bool
	}
	membersMsg struct {
		members []claimsapi.MemberSummary
		err     error
	}
	historyMsg struct {
		memberID string
		records  []claimsapi.ClaimRecord
		err      error
	}
	loginMsg struct {
		email string
		err   error
	}
	uploadMsg struct {
		filename string
		result   claimsapi.UploadResult
		err      error
	}
)

// waitFlightCmd pumps one transport event off the flight channel and
// re-arms itself from Update until the channel closes.
func waitFlightCmd(f *session.Flight) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-f.Events
		return flightEventMsg{flight: f, ev: ev, ok: ok}
	}
}

func loadMembersCmd(api *claimsapi.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		members, err := api.Members(ctx)
		return membersMsg{members: members, err: err}
	}
}

func loadHistoryCmd(api *claimsapi.Client, memberID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		records, err := api.ClaimsHistory(ctx, memberID)
		return historyMsg{memberID: memberID, records: records, err: err}
	}
}

func loginCmd(api *claimsapi.Client, email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, err := api.Login(ctx, email, password)
		return loginMsg{email: email, err: err}
	}
}

func uploadCmd(api *claimsapi.Client, path string) tea.Cmd {
	return func() tea.Msg {
		filename := filepath.Base(path)
		contents, err := os.ReadFile(path)
		if err != nil {
			return uploadMsg{filename: filename, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		result, err := api.UploadDocument(ctx, filename, contents)
		return uploadMsg{filename: filename, result: result, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, loadMembersCmd(m.api))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.syncTimeline()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup":
			m.timeline.LineUp(5)
			return m, nil
		case "pgdown":
			m.timeline.LineDown(5)
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case flightEventMsg:
		if !msg.ok {
			return m, nil
		}
		m.store.Apply(msg.flight.SessionID, msg.ev)
		switch ev := msg.ev.(type) {
		case transport.Progress:
			if ev.CurrentStage != "" {
				m.statusLine = "Working: " + ev.CurrentStage
			}
		case transport.StatusUpdate:
			m.statusLine = ev.Label
		case transport.Terminal:
			m.statusLine = "Decision: " + ev.Result.Decision
		case transport.Failure:
			m.statusLine = "Request failed: " + ev.Err.Error()
		}
		m.syncTimeline()
		return m, waitFlightCmd(msg.flight)

	case membersMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("member list unavailable")
			m.statusLine = "Member list unavailable: " + msg.err.Error()
			return m, nil
		}
		m.members = msg.members
		if m.memberID == "" && len(m.members) > 0 {
			m.memberID = m.members[0].MemberID
		}
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.statusLine = "History unavailable: " + msg.err.Error()
			return m, nil
		}
		m.statusLine = fmt.Sprintf("%s: %d past claims", msg.memberID, len(msg.records))
		m.timeline.SetContent(m.renderHistory(msg.memberID, msg.records))
		m.timeline.GotoTop()
		return m, nil

	case loginMsg:
		if msg.err != nil {
			m.statusLine = "Login failed: " + msg.err.Error()
			return m, nil
		}
		m.statusLine = "Logged in as " + msg.email
		return m, loadMembersCmd(m.api)

	case uploadMsg:
		if msg.err != nil {
			m.statusLine = "Upload failed: " + msg.err.Error()
			return m, nil
		}
		doc := msg.result.Extracted
		if doc == nil {
			// Demo mode returns a blank template instead of extracted data.
			doc = msg.result.Template
		}
		if doc == nil {
			m.statusLine = "No claim data extracted from " + msg.filename
			return m, nil
		}
		m.pendingDoc = doc
		m.statusLine = fmt.Sprintf("Attached %s (%s); it will accompany your next message", msg.filename, msg.result.ExtractionMethod)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runSlash(text)
	}

	active, ok := m.store.Active()
	if !ok {
		active = m.store.NewSession()
	}
	flight, err := m.store.Send(context.Background(), active.ID, text, session.SendContext{
		MemberID:     m.memberID,
		ExtractedDoc: m.pendingDoc,
	})
	if err != nil {
		m.statusLine = capitalize(err.Error())
		return m, nil
	}
	m.pendingDoc = nil
	m.input.Reset()
	m.statusLine = "Submitting claim…"
	m.syncTimeline()
	return m, waitFlightCmd(flight)
}

const helpText = `/new            start a fresh session
/sessions       list sessions
/switch <n>     activate session n
/delete <n>     delete session n
/member <id>    claim on behalf of a member
/members        refresh the member list
/history        show the member's past claims
/upload <path>  extract a claim form and attach it to the next message
/login <email> <password>
/quit`

func (m model) runSlash(text string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(text)
	switch parts[0] {
	case "/new":
		sess := m.store.NewSession()
		m.statusLine = "Started " + sess.Title
		m.syncTimeline()
		return m, nil

	case "/sessions":
		m.timeline.SetContent(m.renderSessionList())
		m.timeline.GotoTop()
		return m, nil

	case "/switch", "/delete":
		sessions := m.store.Sessions()
		if len(parts) < 2 {
			m.statusLine = "Usage: " + parts[0] + " <n>"
			return m, nil
		}
		idx, err := sessionIndex(parts[1], len(sessions))
		if err != nil {
			m.statusLine = err.Error()
			return m, nil
		}
		target := sessions[idx]
		if parts[0] == "/switch" {
			if err := m.store.SelectSession(target.ID); err != nil {
				m.statusLine = err.Error()
				return m, nil
			}
			m.statusLine = "Switched to " + target.Title
		} else {
			if err := m.store.DeleteSession(target.ID); err != nil {
				m.statusLine = err.Error()
				return m, nil
			}
			if _, ok := m.store.Active(); !ok {
				m.store.NewSession()
			}
			m.statusLine = "Deleted " + target.Title
		}
		m.syncTimeline()
		return m, nil

	case "/member":
		if len(parts) < 2 {
			m.statusLine = "Usage: /member <id>"
			return m, nil
		}
		m.memberID = parts[1]
		m.statusLine = "Claiming as " + m.memberID
		return m, nil

	case "/members":
		m.statusLine = "Loading members…"
		return m, loadMembersCmd(m.api)

	case "/history":
		if m.memberID == "" {
			m.statusLine = "No member selected"
			return m, nil
		}
		m.statusLine = "Loading history…"
		return m, loadHistoryCmd(m.api, m.memberID)

	case "/upload":
		if len(parts) < 2 {
			m.statusLine = "Usage: /upload <path>"
			return m, nil
		}
		m.statusLine = "Extracting " + parts[1] + "…"
		return m, uploadCmd(m.api, parts[1])

	case "/login":
		if len(parts) < 3 {
			m.statusLine = "Usage: /login <email> <password>"
			return m, nil
		}
		m.statusLine = "Logging in…"
		return m, loginCmd(m.api, parts[1], parts[2])

	case "/help":
		m.timeline.SetContent(helpText)
		m.timeline.GotoTop()
		return m, nil

	case "/quit":
		return m, tea.Quit

	default:
		m.statusLine = "Unknown command " + parts[0] + " (try /help)"
		return m, nil
	}
}

// sessionIndex parses a 1-based session number as shown by /sessions.
func sessionIndex(arg string, n int) (int, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 1 || idx > n {
		return 0, fmt.Errorf("no session %q (1-%d)", arg, n)
	}
	return idx - 1, nil
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
