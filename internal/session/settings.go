package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/config"
)

func (e *Engine) settingsStart(s *Session) []Reply {
	settings, err := e.cfg.Settings()
	if err != nil {
		return []Reply{errorReply(err)}
	}

	var listing strings.Builder
	buttons := make([][]string, 0, len(settings)/2+2)
	var row []string
	for _, setting := range settings {
		value := fmt.Sprintf("%v", setting.Value)
		if setting.Masked() {
			value = "*****"
		}
		fmt.Fprintf(&listing, "%s: %s\n", setting.Key, value)
		row = append(row, setting.Key)
		if len(row) == 2 {
			buttons = append(buttons, row)
			row = nil
		}
	}
	if len(row) > 0 {
		buttons = append(buttons, row)
	}
	buttons = append(buttons, []string{"CANCEL"})

	s.Workflow = WorkflowSettings
	if !e.advance(s, StepSettingsChange) {
		return e.cancel(s)
	}
	return []Reply{
		{Text: listing.String()},
		{Text: "Choose key to change value", Buttons: buttons},
	}
}

func (e *Engine) settingsChange(ctx context.Context, s *Session, text string) []Reply {
	key := strings.ToLower(strings.TrimSpace(text))
	if key == config.ProtectedKey {
		return []Reply{{Text: "It's not possible to change " + config.ProtectedKey}}
	}
	if !e.cfg.HasKey(key) {
		return []Reply{{Text: "Unknown setting, choose one of the listed keys"}}
	}

	s.Settings.Key = key
	if !e.advance(s, StepSettingsSave) {
		return e.cancel(s)
	}
	return []Reply{{Text: "Enter new value", RemoveKeyboard: true}}
}

func (e *Engine) settingsSave(ctx context.Context, s *Session, text string) []Reply {
	s.Settings.Value = config.Coerce(text)
	if !e.advance(s, StepSettingsConfirm) {
		return e.cancel(s)
	}
	return []Reply{{Text: "Save new value and restart bot?", Buttons: confirmKeyboard()}}
}

// settingsConfirm persists the changed key through the full validation
// round trip and requests a process restart to apply it. The restart is only
// marked pending here; the transport triggers it once the confirmation below
// has gone out.
func (e *Engine) settingsConfirm(ctx context.Context, s *Session, text string) []Reply {
	if isNo(text) {
		return e.cancel(s)
	}
	if !isYes(text) {
		return []Reply{{Text: "Save new value and restart bot? YES or NO"}}
	}

	updated, err := e.cfg.WithValue(s.Settings.Key, s.Settings.Value)
	if err != nil {
		s.Clear()
		return []Reply{errorReply(err), {Text: "Value not saved", Buttons: commandsKeyboard()}}
	}
	if err := updated.Save(e.cfgPath); err != nil {
		s.Clear()
		return []Reply{errorReply(err), {Text: "Value not saved", Buttons: commandsKeyboard()}}
	}

	e.log.WithField("key", s.Settings.Key).Info("setting changed, restart pending")
	s.Clear()
	e.restartPending = true
	return []Reply{{Text: "New value saved. Restarting...", Buttons: commandsKeyboard()}}
}
