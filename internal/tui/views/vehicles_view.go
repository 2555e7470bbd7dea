package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/faeterjconnect/connect/internal/rpc"
	"github.com/faeterjconnect/connect/internal/tui/ui"
)

// VehiclesView lists buses near the campus: a per-line summary on the left
// and individual vehicles ordered by ETA on the right.
type VehiclesView struct {
	*tview.Flex
	theme    *ui.Theme
	lines    *tview.Table
	vehicles *tview.Table
}

// NewVehiclesView creates a new vehicles view.
func NewVehiclesView(theme *ui.Theme) *VehiclesView {
	newTable := func(title string) *tview.Table {
		t := tview.NewTable().
			SetSelectable(true, false).
			SetFixed(1, 0)
		t.SetBorder(true)
		t.SetBorderColor(theme.BorderColor)
		t.SetBackgroundColor(theme.BgColor)
		t.SetTitle(title)
		t.SetTitleColor(theme.TitleColor)
		t.SetSelectedStyle(tcell.StyleDefault.
			Foreground(theme.TableCursorFg).
			Background(theme.TableCursorBg))
		return t
	}

	vv := &VehiclesView{
		theme:    theme,
		lines:    newTable(" Lines "),
		vehicles: newTable(" Vehicles "),
	}
	vv.Flex = tview.NewFlex().
		AddItem(vv.lines, 0, 1, false).
		AddItem(vv.vehicles, 0, 2, true)
	return vv
}

// Name implements Component.
func (vv *VehiclesView) Name() string { return "Vehicles" }

// FocusTarget implements Component.
func (vv *VehiclesView) FocusTarget() tview.Primitive { return vv.Table() }

// Hints implements Component.
func (vv *VehiclesView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
}

// Table returns the vehicle table (for focus management).
func (vv *VehiclesView) Table() *tview.Table {
	return vv.vehicles
}

func (vv *VehiclesView) header(t *tview.Table, cols ...string) {
	for i, h := range cols {
		t.SetCell(0, i, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(vv.theme.TableHeaderFg).
			SetBackgroundColor(vv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}
}

// Update renders a snapshot; nil shows a loading state.
func (vv *VehiclesView) Update(snap *rpc.NearbyVehiclesResponse) {
	vv.lines.Clear()
	vv.vehicles.Clear()
	vv.header(vv.lines, " LINE", " NEXT", " BUSES")
	vv.header(vv.vehicles, " LINE", " BUS", " ETA", " DIST", " SPEED")

	if snap == nil {
		vv.vehicles.SetTitle(" Vehicles (loading…) ")
		return
	}

	for i, l := range snap.Lines {
		color := tcell.GetColor(l.Color)
		vv.lines.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(l.Linha)).SetTextColor(color).SetAttributes(tcell.AttrBold))
		vv.lines.SetCell(i+1, 1, tview.NewTableCell(" "+l.ETALabel).SetTextColor(vv.theme.FgColor).SetExpansion(1))
		vv.lines.SetCell(i+1, 2, tview.NewTableCell(fmt.Sprintf(" %d", l.Vehicles)).SetTextColor(vv.theme.FgColor).SetAlign(tview.AlignRight))
	}
	for i, v := range snap.Vehicles {
		color := tcell.GetColor(v.LineColor)
		vv.vehicles.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(v.Linha)).SetTextColor(color).SetAttributes(tcell.AttrBold))
		vv.vehicles.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(v.Ordem)).SetTextColor(vv.theme.FgColor))
		vv.vehicles.SetCell(i+1, 2, tview.NewTableCell(" "+v.ETALabel).SetTextColor(vv.theme.CounterColor).SetExpansion(1))
		vv.vehicles.SetCell(i+1, 3, tview.NewTableCell(" "+v.DistLabel).SetTextColor(vv.theme.FgColor).SetAlign(tview.AlignRight))
		vv.vehicles.SetCell(i+1, 4, tview.NewTableCell(fmt.Sprintf(" %.0f km/h", v.SpeedKmh)).SetTextColor(vv.theme.FgColor).SetAlign(tview.AlignRight))
	}
	vv.vehicles.SetTitle(fmt.Sprintf(" Vehicles (%d) ", len(snap.Vehicles)))
	vv.lines.SetTitle(fmt.Sprintf(" Lines (%d) ", len(snap.Lines)))
}
