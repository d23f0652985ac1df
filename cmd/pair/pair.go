// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pair implements the interactive Fire TV pairing wizard.
package pair

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbletea"

	"ember/internal/driver"
	"ember/internal/firetv"
)

// Pairing wizard phases
type phase int

const (
	phaseHost phase = iota
	phaseConnecting
	phasePin
	phaseVerifying
	phaseDone
	phaseFailed
)

// Messages from async pairing steps
type pinRequestedMsg struct{}

type verifiedMsg struct {
	token string
}

type pairErrMsg struct {
	err error
}

// Model drives the pairing wizard
type Model struct {
	phase phase

	host       string
	hostCursor int
	pin        string
	pinCursor  int

	friendlyName string
	client       *firetv.Client
	registry     *driver.Registry
	debug        bool

	deviceID string
	token    string
	errText  string
	quitting bool
}

// NewModel creates a pairing wizard. host may be prefilled from a flag;
// registry may be nil to skip persisting the pairing.
func NewModel(host, friendlyName string, registry *driver.Registry, debug bool) Model {
	if friendlyName == "" {
		friendlyName = driver.DefaultFriendlyName
	}
	return Model{
		phase:        phaseHost,
		host:         host,
		hostCursor:   len(host),
		friendlyName: friendlyName,
		registry:     registry,
		debug:        debug,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// requestPinCmd probes the device and asks it to display a PIN
func requestPinCmd(client *firetv.Client, friendlyName string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		if err := client.TestConnection(ctx); err != nil {
			return pairErrMsg{err: fmt.Errorf("device unreachable: %w", err)}
		}

		if _, err := client.RequestPIN(ctx, friendlyName); err != nil {
			return pairErrMsg{err: err}
		}

		return pinRequestedMsg{}
	}
}

// verifyPinCmd submits the PIN and stores the pairing
func verifyPinCmd(client *firetv.Client, registry *driver.Registry, friendlyName, pin string) tea.Cmd {
	return func() tea.Msg {
		token, err := client.VerifyPIN(context.Background(), pin)
		if err != nil {
			return pairErrMsg{err: err}
		}

		if registry != nil {
			deviceID := driver.DeviceIDForHost(client.Host())
			if _, err := registry.Add(deviceID, friendlyName, client.Host(), token); err != nil {
				return pairErrMsg{err: fmt.Errorf("pairing succeeded but could not be saved: %w", err)}
			}
		}

		return verifiedMsg{token: token}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pinRequestedMsg:
		m.phase = phasePin
		m.errText = ""
		return m, nil

	case verifiedMsg:
		m.phase = phaseDone
		m.token = msg.token
		m.deviceID = driver.DeviceIDForHost(m.host)
		return m, nil

	case pairErrMsg:
		m.phase = phaseFailed
		m.errText = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		// 'q' quits except while typing in an input field
		if msg.String() == "ctrl+c" || (m.phase != phaseHost && m.phase != phasePin) {
			m.quitting = true
			return m, tea.Quit
		}

	case "enter":
		return m.handleEnter()

	case "left":
		m.moveCursor(-1)
		return m, nil

	case "right":
		m.moveCursor(1)
		return m, nil

	case "backspace":
		m.handleBackspace()
		return m, nil

	case "esc":
		if m.phase == phaseFailed {
			m.phase = phaseHost
			m.errText = ""
			return m, nil
		}
	}

	m.handleTextInput(msg.String())
	return m, nil
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseHost:
		host := strings.TrimSpace(m.host)
		if host == "" {
			m.errText = "Host address is required"
			return m, nil
		}
		m.errText = ""
		m.phase = phaseConnecting
		m.client = firetv.NewClient(host, "", m.debug)
		return m, requestPinCmd(m.client, m.friendlyName)

	case phasePin:
		pin := strings.TrimSpace(m.pin)
		if pin == "" {
			m.errText = "PIN is required"
			return m, nil
		}
		m.errText = ""
		m.phase = phaseVerifying
		return m, verifyPinCmd(m.client, m.registry, m.friendlyName, pin)

	case phaseDone, phaseFailed:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) moveCursor(delta int) {
	switch m.phase {
	case phaseHost:
		m.hostCursor += delta
		if m.hostCursor < 0 {
			m.hostCursor = 0
		}
		if m.hostCursor > len(m.host) {
			m.hostCursor = len(m.host)
		}
	case phasePin:
		m.pinCursor += delta
		if m.pinCursor < 0 {
			m.pinCursor = 0
		}
		if m.pinCursor > len(m.pin) {
			m.pinCursor = len(m.pin)
		}
	}
}

func (m *Model) handleBackspace() {
	switch m.phase {
	case phaseHost:
		if m.hostCursor > 0 {
			m.host = deleteCharAt(m.host, m.hostCursor-1)
			m.hostCursor--
		}
	case phasePin:
		if m.pinCursor > 0 {
			m.pin = deleteCharAt(m.pin, m.pinCursor-1)
			m.pinCursor--
		}
	}
}

func (m *Model) handleTextInput(input string) {
	if m.phase != phaseHost && m.phase != phasePin {
		return
	}

	printable := ""
	for _, r := range input {
		if r >= 32 && r < 127 {
			printable += string(r)
		}
	}
	if printable == "" {
		return
	}

	switch m.phase {
	case phaseHost:
		m.host = insertText(m.host, m.hostCursor, printable)
		m.hostCursor += len(printable)
	case phasePin:
		m.pin = insertText(m.pin, m.pinCursor, printable)
		m.pinCursor += len(printable)
	}
}

func (m Model) View() string {
	if m.quitting {
		if m.token != "" {
			return successStyle.Render("Paired!") + "\n" +
				fmt.Sprintf("Device: %s\nToken:  %s\n", m.deviceID, m.token)
		}
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Ember - Fire TV Pairing"))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseHost:
		b.WriteString(subtitleStyle.Render("Fire TV host address (IP or IP:Port):"))
		b.WriteString("\n")
		b.WriteString(inputFocusedStyle.Render(renderTextWithCursor(m.host, m.hostCursor, true)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("Enter: Connect • Ctrl+C: Quit"))

	case phaseConnecting:
		b.WriteString("Connecting to " + m.host + " and requesting PIN display...\n")
		b.WriteString(helpStyle.Render("This can take a few seconds if the device was asleep."))

	case phasePin:
		b.WriteString(subtitleStyle.Render("Enter the PIN shown on your Fire TV:"))
		b.WriteString("\n")
		b.WriteString(inputFocusedStyle.Render(renderTextWithCursor(m.pin, m.pinCursor, true)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("Enter: Verify • Ctrl+C: Quit"))

	case phaseVerifying:
		b.WriteString("Verifying PIN...\n")

	case phaseDone:
		b.WriteString(successStyle.Render("Pairing complete"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("Device: %s\n", driver.DeviceIDForHost(m.host)))
		b.WriteString(fmt.Sprintf("Token:  %s\n\n", m.token))
		b.WriteString(helpStyle.Render("Enter/q: Quit"))

	case phaseFailed:
		b.WriteString(errorStyle.Render("Pairing failed: " + m.errText))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("Esc: Start over • Enter/q: Quit"))
	}

	if m.errText != "" && (m.phase == phaseHost || m.phase == phasePin) {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("Error: " + m.errText))
	}

	return b.String()
}

// Start runs the pairing wizard
func Start(host, friendlyName string, registry *driver.Registry, debug bool) error {
	p := tea.NewProgram(
		NewModel(host, friendlyName, registry, debug),
		tea.WithAltScreen(),
	)

	defer func() {
		if r := recover(); r != nil {
			p.Kill()
		}
	}()

	_, err := p.Run()
	return err
}
