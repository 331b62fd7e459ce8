package eir

import (
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// stampRow is one line of the status report: a package, a phase, and the
// completion state of its stamped stages.
type stampRow struct {
	Package string
	Phase   string
	Patched bool
	Built   bool
}

func collectStatus(bc *BuildContext, manifests []*Manifest) []stampRow {
	var rows []stampRow
	for _, m := range manifests {
		phases := make([]string, 0, len(m.Build))
		for phase := range m.Build {
			phases = append(phases, phase)
		}
		sort.Strings(phases)
		for _, phase := range phases {
			rows = append(rows, stampRow{
				Package: m.Name,
				Phase:   phase,
				Patched: bc.Stamps.Exists(m.Name, phase, StagePatch),
				Built:   bc.Stamps.Exists(m.Name, phase, StageBuild),
			})
		}
	}
	return rows
}

// printStatus renders the stamp table to stdout.
func printStatus(bc *BuildContext, manifests []*Manifest) {
	rows := collectStatus(bc, manifests)
	if len(rows) == 0 {
		colWarn.Println("No buildable phases found in manifests")
		return
	}

	cPrintf(colInfo, "%-20s %-12s %-8s %-8s\n", "PACKAGE", "PHASE", "PATCH", "BUILD")
	mark := func(ok bool) string {
		if ok {
			return colSuccess.Sprint("done")
		}
		return "-"
	}
	for _, r := range rows {
		fmt.Printf("%-20s %-12s %-8s %-8s\n", r.Package, r.Phase, mark(r.Patched), mark(r.Built))
	}
}

// runStatusTUI shows the same table live, refreshing once a second so a
// second terminal can watch a long toolchain run progress. 'q' quits.
func runStatusTUI(bc *BuildContext, manifests []*Manifest) error {
	app := tview.NewApplication()

	table := tview.NewTable().SetBorders(false)
	table.SetBorder(true)
	table.SetTitle(" eir build status ")

	fill := func() {
		table.Clear()
		headers := []string{"PACKAGE", "PHASE", "PATCH", "BUILD"}
		for col, h := range headers {
			table.SetCell(0, col, tview.NewTableCell(h).
				SetTextColor(tcell.ColorYellow).
				SetSelectable(false))
		}
		for i, r := range collectStatus(bc, manifests) {
			mark := func(ok bool) *tview.TableCell {
				if ok {
					return tview.NewTableCell("done").SetTextColor(tcell.ColorGreen)
				}
				return tview.NewTableCell("-").SetTextColor(tcell.ColorGray)
			}
			table.SetCell(i+1, 0, tview.NewTableCell(r.Package))
			table.SetCell(i+1, 1, tview.NewTableCell(r.Phase))
			table.SetCell(i+1, 2, mark(r.Patched))
			table.SetCell(i+1, 3, mark(r.Built))
		}
	}
	fill()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		return event
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				app.QueueUpdateDraw(fill)
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)

	return app.SetRoot(table, true).Run()
}
