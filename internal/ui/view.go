// Package ui is the terminal front end: a workout page, a history page and
// a log pane, all on tview.
package ui

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nadahalli/thumper/internal/go_func_utils"
	"github.com/nadahalli/thumper/internal/jump"
	"github.com/nadahalli/thumper/internal/session"
	"github.com/nadahalli/thumper/internal/workout"
)

const (
	pageMain    = "main"
	pageSummary = "summary"
	pageConfirm = "confirm"

	pageWorkout = "workout"
	pageHistory = "history"

	maxLogLines = 1000
)

// LogSource is the in-memory log feed rendered in the log pane.
type LogSource interface {
	Listen(ch chan string) func()
}

// View owns every tview widget. Widgets are only touched on the tview event
// loop; listener goroutines hand updates over with QueueUpdateDraw.
type View struct {
	logger     *log.Logger
	app        *tview.Application
	controller *Controller

	root         *tview.Pages
	content      *tview.Pages
	logView      *tview.TextView
	workoutPanel *tview.TextView
	hintPanel    *tview.TextView
	historyList  *tview.List
	historyHint  *tview.TextView
	summaryModal *tview.Modal
	confirmModal *tview.Modal

	currentPage  string
	summaryShown bool
	workouts     []workout.Workout
	pendingID    int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewView(controller *Controller, logs LogSource, logger *log.Logger) *View {
	if controller == nil {
		panic("View: controller cannot be nil")
	}
	if logger == nil {
		panic("View: logger cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		logger:      logger,
		app:         tview.NewApplication(),
		controller:  controller,
		currentPage: pageWorkout,
		ctx:         ctx,
		cancel:      cancel,
	}
	v.initWidgets()
	v.setupKeyboardHandlers()
	v.renderState(controller.CurrentState())
	v.setupEventListeners(logs)
	return v
}

func (v *View) initWidgets() {
	// No SetChangedFunc with app.Draw here: it hangs when log lines arrive
	// after the app has stopped. Listeners redraw through QueueUpdateDraw.
	v.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetMaxLines(maxLogLines)
	v.logView.SetBorder(true).SetTitle(" Logs ")

	v.workoutPanel = tview.NewTextView().SetDynamicColors(true)
	v.workoutPanel.SetBorder(true).SetTitle(" Workout ")

	v.hintPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	workoutFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.workoutPanel, 0, 1, true).
		AddItem(v.hintPanel, 3, 0, false)

	v.historyList = tview.NewList().ShowSecondaryText(true)
	v.historyList.SetBorder(true).SetTitle(" History ")
	v.historyHint = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]E[white] Export  |  [yellow]Shift+E[white] Export all  |  [yellow]D[white] Delete  |  [yellow]R[white] Reload  |  [yellow]W[white] Workout  |  [yellow]Q[white] Quit")

	historyFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.historyList, 0, 1, true).
		AddItem(v.historyHint, 2, 0, false)

	v.content = tview.NewPages().
		AddPage(pageWorkout, workoutFlex, true, true).
		AddPage(pageHistory, historyFlex, true, false)

	mainFlex := tview.NewFlex().
		AddItem(v.content, 0, 1, true).
		AddItem(v.logView, 0, 1, false)

	v.summaryModal = tview.NewModal().
		AddButtons([]string{"Save", "Discard"}).
		SetDoneFunc(func(_ int, label string) {
			switch label {
			case "Save":
				v.controller.SaveWorkout()
			case "Discard":
				v.controller.DiscardWorkout()
			}
		})

	v.confirmModal = tview.NewModal().
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			v.root.HidePage(pageConfirm)
			v.app.SetFocus(v.historyList)
			if label == "Delete" {
				v.controller.DeleteWorkout(v.pendingID)
			}
		})

	v.root = tview.NewPages().
		AddPage(pageMain, mainFlex, true, true).
		AddPage(pageSummary, v.summaryModal, false, false).
		AddPage(pageConfirm, v.confirmModal, false, false)
}

func (v *View) modalOpen() bool {
	front, _ := v.root.GetFrontPage()
	return front == pageSummary || front == pageConfirm
}

func (v *View) showPage(name string) {
	if v.currentPage == name {
		return
	}
	v.currentPage = name
	v.content.SwitchToPage(name)
	if name == pageHistory {
		v.app.SetFocus(v.historyList)
		v.controller.RefreshHistory()
	} else {
		v.app.SetFocus(v.workoutPanel)
	}
}

func (v *View) setupKeyboardHandlers() {
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if v.modalOpen() {
			return event
		}
		if event.Key() == tcell.KeyEscape && v.currentPage == pageHistory {
			v.showPage(pageWorkout)
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}

		switch event.Rune() {
		case 'q':
			v.controller.RequestQuit()
			return nil
		case 'h':
			v.showPage(pageHistory)
			return nil
		case 'w':
			v.showPage(pageWorkout)
			return nil
		}

		switch v.currentPage {
		case pageWorkout:
			switch event.Rune() {
			case ' ':
				v.controller.ToggleWorkout()
			case 's':
				v.controller.StopWorkout()
			case 'b':
				v.controller.ConnectHeartRate()
			case 'B':
				v.controller.DisconnectHeartRate()
			case '+', '=':
				v.controller.AdjustSensitivity(jump.ThresholdStep)
			case '-':
				v.controller.AdjustSensitivity(-jump.ThresholdStep)
			default:
				return event
			}
			return nil
		case pageHistory:
			switch event.Rune() {
			case 'e':
				if w, ok := v.selectedWorkout(); ok {
					v.controller.ExportWorkout(w.ID)
				}
			case 'E':
				v.controller.ExportAll()
			case 'd':
				if w, ok := v.selectedWorkout(); ok {
					v.confirmDelete(w)
				}
			case 'r':
				v.controller.RefreshHistory()
			default:
				return event
			}
			return nil
		}
		return event
	})
}

func (v *View) selectedWorkout() (workout.Workout, bool) {
	idx := v.historyList.GetCurrentItem()
	if idx < 0 || idx >= len(v.workouts) {
		return workout.Workout{}, false
	}
	return v.workouts[idx], true
}

func (v *View) confirmDelete(w workout.Workout) {
	v.pendingID = w.ID
	main, _ := historyRow(w)
	v.confirmModal.SetText(fmt.Sprintf("Delete the workout from %s?", main))
	v.confirmModal.SetFocus(1)
	v.root.ShowPage(pageConfirm)
	v.app.SetFocus(v.confirmModal)
}

func (v *View) renderState(st session.State) {
	v.workoutPanel.SetText(workoutText(st))
	v.hintPanel.SetText(controlsHint(st.Phase))

	switch {
	case st.Phase == session.PhaseStopped && st.Summary != nil && !v.summaryShown:
		v.summaryShown = true
		v.summaryModal.SetText(summaryText(*st.Summary))
		v.summaryModal.SetFocus(0)
		v.root.ShowPage(pageSummary)
		v.app.SetFocus(v.summaryModal)
	case st.Phase != session.PhaseStopped && v.summaryShown:
		v.summaryShown = false
		v.root.HidePage(pageSummary)
		v.restoreFocus()
	}
}

func (v *View) restoreFocus() {
	if v.currentPage == pageHistory {
		v.app.SetFocus(v.historyList)
	} else {
		v.app.SetFocus(v.workoutPanel)
	}
}

func (v *View) renderHistory(list []workout.Workout) {
	current := v.historyList.GetCurrentItem()
	v.workouts = list
	v.historyList.Clear()
	for _, w := range list {
		main, secondary := historyRow(w)
		v.historyList.AddItem(main, secondary, 0, nil)
	}
	if len(list) == 0 {
		v.historyList.AddItem("No saved workouts", "", 0, nil)
		return
	}
	if current >= len(list) {
		current = len(list) - 1
	}
	v.historyList.SetCurrentItem(current)
}

func (v *View) appendLog(line string) {
	fmt.Fprintln(v.logView, line)
	v.logView.ScrollToEnd()
}

// listen drains ch on its own goroutine and applies each value on the
// event loop.
func listen[T any](v *View, ch chan T, unregister func(), apply func(T)) {
	go_func_utils.SafeGoWG(v.logger, &v.wg, func() {
		defer unregister()
		for {
			select {
			case <-v.ctx.Done():
				return
			case value, ok := <-ch:
				if !ok {
					return
				}
				v.app.QueueUpdateDraw(func() { apply(value) })
			}
		}
	})
}

func (v *View) setupEventListeners(logs LogSource) {
	stateCh := make(chan session.State, 1)
	listen(v, stateCh, v.controller.ListenToState(stateCh), v.renderState)

	historyCh := make(chan []workout.Workout, 1)
	listen(v, historyCh, v.controller.ListenToHistory(historyCh), v.renderHistory)

	if logs != nil {
		logCh := make(chan string, 256)
		listen(v, logCh, logs.Listen(logCh), v.appendLog)
	}

	closeCh := make(chan struct{}, 1)
	unregisterClose := v.controller.ListenToClose(closeCh)
	go_func_utils.SafeGoWG(v.logger, &v.wg, func() {
		defer unregisterClose()
		select {
		case <-v.ctx.Done():
		case <-closeCh:
			v.app.Stop()
		}
	})
}

// Run blocks until the user quits.
func (v *View) Run() error {
	v.app.SetRoot(v.root, true)
	v.app.SetFocus(v.workoutPanel)
	return v.app.Run()
}

// Shutdown stops the listener goroutines and waits for them.
func (v *View) Shutdown() {
	v.logger.Println("View: shutting down")
	v.cancel()
	v.wg.Wait()
}
