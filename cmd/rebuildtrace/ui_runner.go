package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"rebuildtrace/internal/ui"
)

// runReplayWithUI runs replay in the background while a Bubble Tea
// program renders its progress events.
func runReplayWithUI(ctx context.Context, title string, rows []string, replay func(progress func(ui.Event)) error) error {
	events := make(chan ui.Event, 256)
	errCh := make(chan error, 1)

	go func() {
		err := replay(func(ev ui.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		errCh <- err
		close(events)
	}()

	model := ui.NewProgressModel(title, rows, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()

	// The program may quit before the replay finishes.
	go func() {
		for range events {
		}
	}()
	err := <-errCh
	if err != nil {
		return err
	}
	return uiErr
}
