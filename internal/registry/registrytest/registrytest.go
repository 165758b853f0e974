// Package registrytest provides a deterministic in-memory registry Session
// and HTML page builders for tests.
package registrytest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"medverify/internal/registry"
)

// Session is a scripted registry.Session. An empty ResultPage or
// DetailPage makes the matching wait block until ctx is done, the same way a
// page that never renders behaves.
type Session struct {
	OpenErr       error
	BlockOpen     bool
	SearchErr     error
	ResultPage    string
	ResultErr     error
	OpenDetailErr error
	DetailPage    string
	DetailErr     error

	mu       sync.Mutex
	searched []string
	closes   int
}

var _ registry.Session = (*Session)(nil)

func (s *Session) Open(ctx context.Context) error {
	if s.BlockOpen {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.OpenErr
}

func (s *Session) Search(_ context.Context, licenseNumber string) error {
	s.mu.Lock()
	s.searched = append(s.searched, licenseNumber)
	s.mu.Unlock()
	return s.SearchErr
}

func (s *Session) WaitForResult(ctx context.Context) (string, error) {
	if s.ResultErr != nil {
		return "", s.ResultErr
	}
	if s.ResultPage == "" {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.ResultPage, nil
}

func (s *Session) OpenDetail(context.Context) error {
	return s.OpenDetailErr
}

func (s *Session) WaitForDetail(ctx context.Context) (string, error) {
	if s.DetailErr != nil {
		return "", s.DetailErr
	}
	if s.DetailPage == "" {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.DetailPage, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Searched returns the license numbers submitted to this session.
func (s *Session) Searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searched...)
}

// Closed reports whether Close was called at least once.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}

// Launcher hands out scripted sessions in order. Once exhausted it keeps
// returning the last one.
type Launcher struct {
	LaunchErr error

	mu       sync.Mutex
	sessions []*Session
	launches int
}

var _ registry.Launcher = (*Launcher)(nil)

func NewLauncher(sessions ...*Session) *Launcher {
	return &Launcher{sessions: sessions}
}

func (l *Launcher) Launch(context.Context) (registry.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	if len(l.sessions) == 0 {
		return nil, fmt.Errorf("registrytest: no sessions scripted")
	}
	idx := min(l.launches-1, len(l.sessions)-1)
	return l.sessions[idx], nil
}

// Launches returns how many sessions were requested.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// ResultsPage renders a search page whose results table holds rows.
func ResultsPage(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><form><input id="DocRegNo"><button class="fn-BtnDocRegNo">Search</button></form>`)
	b.WriteString(`<table><thead><tr><th>Reg No</th><th>Name</th><th>Father Name</th><th>Status</th><th></th></tr></thead><tbody id="resultTBody">`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString(`<td><a class="fn-viewdetail" href="#">View Detail</a></td></tr>`)
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

// DetailPage renders a page with the detail modal open showing validUntil.
func DetailPage(validUntil string) string {
	return `<html><body><div class="modal-dialog"><dl>` +
		`<dt>License Valid Till</dt><dd id="license_valid"> ` + html.EscapeString(validUntil) + ` </dd>` +
		`</dl></div></body></html>`
}
